package cmd

import (
	"io"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/zhengshuai-xiao/git-fastcdc/internal"
	"github.com/zhengshuai-xiao/git-fastcdc/pkg/dedup"
)

func cmdChunks() *cli.Command {
	return &cli.Command{
		Name:      "chunks",
		Action:    chunks,
		Category:  "INSPECT",
		Usage:     "Print the chunk boundaries and digests of a file without storing it",
		ArgsUsage: "FILE",
		Description: `
			Chunks FILE with the store's settings, or the built-in defaults outside a
			store, and prints one line per chunk: index, offset, length and SHA-256.
			--fixed chunks at a fixed size instead, for comparison.

			Examples:
			$ git-fastcdc chunks --avg 8KiB big.iso
			$ git-fastcdc chunks --fixed 64KiB big.iso`,
		Flags: append(chunkingFlags(),
			&cli.StringFlag{
				Name:  "fixed",
				Usage: "use fixed-size chunks of this size",
			},
			&cli.BoolFlag{
				Name:  "summary",
				Usage: "print only the totals",
			},
		),
	}
}

// chunks are fingerprinted in batches of this many
const chunksBatch = 64

func chunks(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError("chunks needs exactly one FILE")
	}
	path := c.Args().First()
	in, size, err := openInput(c, path)
	if err != nil {
		return err
	}
	defer in.Close()

	base := internal.DefaultStoreConfig().Chunking
	if _, cfg, err := openStore(c); err == nil {
		base = cfg.Chunking
	} else {
		logger.Debugf("using default chunking: %v", err)
	}

	var cdc dedup.CDC
	if c.IsSet("fixed") {
		fixed, err := parseSize(c, "fixed")
		if err != nil {
			return err
		}
		cdc = &dedup.FixedCDC{ChunkSize: int(fixed)}
	} else {
		ch, err := chunkingFor(c, base, size)
		if err != nil {
			return err
		}
		cdc = dedup.NewFastCDC(ch)
	}
	p := cdc.Params()
	logger.Debugf("chunking %s with min %d avg %d max %d nc %d", path, p.MinSize, p.AvgSize, p.MaxSize, p.Normalization)

	chunker, err := cdc.NewChunker(in)
	if err != nil {
		return err
	}
	unique := internal.NewSet[dedup.Digest]()
	var count int
	var total, uniqueBytes uint64
	flush := func(batch []dedup.Chunk) {
		dedup.CalcFPs(batch)
		for i := range batch {
			chunk := &batch[i]
			chunk.Deduped = unique.Contains(chunk.FP)
			if !chunk.Deduped {
				unique.Add(chunk.FP)
				uniqueBytes += chunk.Len
			}
			count++
			total += chunk.Len
			if !c.Bool("summary") {
				printf(c, "%d\t%d\t%d\t%s\n", count, chunk.Offset, chunk.Len, chunk.FP)
			}
		}
	}

	batch := make([]dedup.Chunk, 0, chunksBatch)
	for {
		chunk, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		batch = append(batch, chunk)
		if len(batch) == chunksBatch {
			flush(batch)
			batch = batch[:0]
		}
	}
	flush(batch)

	avg := uint64(0)
	if count > 0 {
		avg = total / uint64(count)
	}
	printf(c, "%s: %d chunks, %s, average %s, %d unique (%s)\n",
		path, count, humanize.IBytes(total), humanize.IBytes(avg), unique.Len(), humanize.IBytes(uniqueBytes))
	return nil
}

