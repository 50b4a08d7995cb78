package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/zhengshuai-xiao/git-fastcdc/internal"
	"github.com/zhengshuai-xiao/git-fastcdc/pkg/dedup"
)

func cmdStore() *cli.Command {
	return &cli.Command{
		Name:      "store",
		Action:    store,
		Category:  "DATA",
		Usage:     "Chunk files into the store and write their manifests",
		ArgsUsage: "FILE...",
		Description: `
			Every FILE is split into content-defined chunks, new chunks are added to the
			store and FILE.cdc is written with the list of chunks that rebuilds it. The
			manifest is registered in the store catalog so that prune keeps its chunks.
			"-" reads standard input and needs --output.

			Examples:
			$ git-fastcdc store big.iso
			$ git-fastcdc store --avg auto --jobs 4 --progress *.vmdk
			$ tar c dir | git-fastcdc store --output dir.tar.cdc -`,
		Flags: append(chunkingFlags(),
			&cli.IntFlag{
				Name:  "jobs",
				Value: runtime.NumCPU(),
				Usage: "number of files chunked in parallel",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "manifest path for a single FILE (default: FILE.cdc)",
			},
			&cli.BoolFlag{
				Name:  "replace",
				Usage: "remove each FILE once its manifest is written",
			},
			progressFlag(),
		),
	}
}

type storeResult struct {
	input    string
	manifest string
	m        *dedup.Manifest
	stats    dedup.IngestStats
}

func store(c *cli.Context) error {
	files := c.Args().Slice()
	if len(files) == 0 {
		return usageError("store needs at least one FILE")
	}
	if c.IsSet("output") && len(files) != 1 {
		return usageError("--output needs exactly one FILE")
	}
	for _, f := range files {
		if f == "-" && !c.IsSet("output") {
			return usageError("reading standard input needs --output")
		}
	}
	if c.Bool("replace") && files[0] == "-" {
		return usageError("--replace cannot remove standard input")
	}
	jobs := c.Int("jobs")
	if jobs < 1 {
		return usageError("--jobs must be at least 1")
	}

	s, cfg, err := openStore(c)
	if err != nil {
		return err
	}
	unlock, err := s.Lock(c.Context, false, lockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	var total int64
	for _, f := range files {
		if info, err := os.Stat(f); err == nil && info.Mode().IsRegular() {
			total += info.Size()
		}
	}
	bar := newProgressBar(c, total, "store ")
	var progress func(int)
	if bar != nil {
		progress = func(n int) { bar.Add(n) }
	}

	results := make([]*storeResult, len(files))
	g, ctx := errgroup.WithContext(c.Context)
	g.SetLimit(jobs)
	for i, f := range files {
		g.Go(func() error {
			r, err := storeFile(ctx, c, s, cfg, f, progress)
			if err != nil {
				return fmt.Errorf("store %s: %w", f, err)
			}
			results[i] = r
			return nil
		})
	}
	err = g.Wait()
	if bar != nil {
		bar.Finish()
	}

	// manifests already written are registered even when a later file
	// failed, so their chunks survive prune
	if rerr := register(c, results); rerr != nil && err == nil {
		err = rerr
	}
	if err != nil {
		return err
	}

	var sum dedup.IngestStats
	for _, r := range results {
		sum.Add(r.stats)
		printf(c, "%s -> %s: %d chunks, %d new, %s deduplicated\n",
			r.input, r.manifest, r.stats.Chunks, r.stats.NewChunks, humanize.IBytes(uint64(r.stats.DedupBytes)))
		if c.Bool("replace") {
			if err := os.Remove(r.input); err != nil {
				return err
			}
			logger.Debugf("removed %s", r.input)
		}
	}
	if len(results) > 1 {
		printf(c, "total: %s in %d chunks, %s new, %s deduplicated\n",
			humanize.IBytes(uint64(sum.Bytes)), sum.Chunks,
			humanize.IBytes(uint64(sum.NewBytes)), humanize.IBytes(uint64(sum.DedupBytes)))
	}
	return nil
}

func storeFile(ctx context.Context, c *cli.Context, s *dedup.POSIXStore, cfg *internal.StoreConfig,
	path string, progress func(int)) (*storeResult, error) {
	in, size, err := openInput(c, path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	ch, err := chunkingFor(c, cfg.Chunking, size)
	if err != nil {
		return nil, err
	}
	ing := &dedup.Ingester{
		Store:    s,
		CDC:      dedup.NewFastCDC(ch),
		Metrics:  storeMetrics(c),
		Progress: progress,
	}
	m, stats, err := ing.Ingest(ctx, in)
	if err != nil {
		return nil, err
	}

	out := c.String("output")
	if out == "" {
		out = path + dedup.ManifestExt
	}
	if err := m.WriteFile(out); err != nil {
		return nil, err
	}
	logger.Debugf("stored %s: %s in %d chunks (min %d avg %d max %d nc %d), %d new",
		path, humanize.IBytes(m.TotalLength), len(m.Entries),
		ch.MinSize, ch.AvgSize, ch.MaxSize, ch.Normalization, stats.NewChunks)
	abs, err := filepath.Abs(out)
	if err != nil {
		abs = out
	}
	return &storeResult{input: path, manifest: abs, m: m, stats: stats}, nil
}

func register(c *cli.Context, results []*storeResult) error {
	cat, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()
	for _, r := range results {
		if r == nil {
			continue
		}
		if err := cat.Register(r.manifest, r.m); err != nil {
			return err
		}
	}
	return nil
}
