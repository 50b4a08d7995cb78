package cmd

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/cheggaaa/pb"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/zhengshuai-xiao/git-fastcdc/internal"
	"github.com/zhengshuai-xiao/git-fastcdc/pkg/catalog"
	fastcdc "github.com/zhengshuai-xiao/git-fastcdc/pkg/cdc"
	"github.com/zhengshuai-xiao/git-fastcdc/pkg/dedup"
)

const (
	lockTimeout    = 30 * time.Second
	catalogTimeout = 30 * time.Second
	autoSize       = "auto"
)

func openStore(c *cli.Context) (*dedup.POSIXStore, *internal.StoreConfig, error) {
	root := c.String("store")
	s, cfg, err := dedup.OpenPOSIXStore(root, storeMetrics(c))
	if err != nil {
		return nil, nil, err
	}
	s.SetReadOnly(c.Bool("read-only"))
	logger.Debugf("opened store %s (uuid %s)", root, cfg.UUID)
	internal.SetLogID(fmt.Sprintf("[%.8s] ", cfg.UUID))
	return s, cfg, nil
}

func openCatalog(c *cli.Context) (*catalog.Catalog, error) {
	if c.Bool("read-only") {
		return catalog.OpenReadOnly(c.Context, c.String("store"), catalogTimeout)
	}
	return catalog.Open(c.Context, c.String("store"), catalogTimeout)
}

func chunkingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "min",
			Usage: "minimum chunk size, e.g. 16KiB (default: avg/4, or the store setting)",
		},
		&cli.StringFlag{
			Name:  "avg",
			Usage: "average chunk size, or \"auto\" to derive it from each file's size (default: the store setting)",
		},
		&cli.StringFlag{
			Name:  "max",
			Usage: "maximum chunk size (default: avg*4, or the store setting)",
		},
		&cli.IntFlag{
			Name:  "normalization",
			Usage: "normalized chunking level 0..3, 0 disables it (default: the store setting)",
		},
	}
}

func parseSize(c *cli.Context, name string) (uint32, error) {
	n, err := internal.ParseBytes(c.String(name))
	if err != nil {
		return 0, fmt.Errorf("%w: --%s: %w", dedup.ErrInvalidConfig, name, err)
	}
	if n > math.MaxUint32 {
		return 0, fmt.Errorf("%w: --%s %s is too large", dedup.ErrInvalidConfig, name, c.String(name))
	}
	return uint32(n), nil
}

// chunkingFor resolves the chunker parameters for a stream of size bytes
// (negative when unknown) from the flags, falling back to base. Setting only
// --avg derives min and max from it the way auto sizing does.
func chunkingFor(c *cli.Context, base internal.ChunkingConfig, size int64) (dedup.Chunking, error) {
	ch := dedup.Chunking{
		MinSize:       base.MinSize,
		AvgSize:       base.AvgSize,
		MaxSize:       base.MaxSize,
		Normalization: base.Normalization,
	}
	if c.IsSet("avg") {
		if strings.EqualFold(c.String("avg"), autoSize) {
			opts := fastcdc.AutoOptions(max(size, 0))
			ch.AvgSize = uint32(opts.AverageSize)
			ch.MinSize = uint32(opts.MinSize)
			ch.MaxSize = uint32(opts.MaxSize)
			ch.Normalization = uint8(opts.Normalization)
		} else {
			avg, err := parseSize(c, "avg")
			if err != nil {
				return ch, err
			}
			ch.AvgSize, ch.MinSize = avg, avg/4
			ch.MaxSize = uint32(min(uint64(avg)*4, math.MaxUint32))
		}
	}
	var err error
	if c.IsSet("min") {
		if ch.MinSize, err = parseSize(c, "min"); err != nil {
			return ch, err
		}
	}
	if c.IsSet("max") {
		if ch.MaxSize, err = parseSize(c, "max"); err != nil {
			return ch, err
		}
	}
	if c.IsSet("normalization") {
		n := c.Int("normalization")
		if n < 0 || n > fastcdc.MaxNormalization {
			return ch, fmt.Errorf("%w: --normalization %d must be within 0..%d", dedup.ErrInvalidConfig, n, fastcdc.MaxNormalization)
		}
		ch.Normalization = uint8(n)
	}
	if err := dedup.NewFastCDC(ch).Validate(); err != nil {
		return ch, err
	}
	return ch, nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newProgressBar returns a byte counting bar on stderr, or nil when
// progress is off or stderr is not a terminal. The bar is a side channel;
// nothing parses it.
func newProgressBar(c *cli.Context, total int64, prefix string) *pb.ProgressBar {
	if !c.Bool("progress") || !isTerminal(os.Stderr) {
		return nil
	}
	bar := pb.New64(total).SetUnits(pb.U_BYTES)
	bar.Output = os.Stderr
	bar.ShowSpeed = true
	bar.Prefix(prefix)
	bar.Start()
	return bar
}

func progressFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "progress",
		Usage: "show a progress bar on stderr when it is a terminal",
	}
}

// trimManifestExt maps big.iso.cdc back to big.iso.
func trimManifestExt(path string) (string, bool) {
	if strings.HasSuffix(path, dedup.ManifestExt) && len(path) > len(dedup.ManifestExt) {
		return strings.TrimSuffix(path, dedup.ManifestExt), true
	}
	return "", false
}

func printf(c *cli.Context, format string, args ...any) {
	fmt.Fprintf(c.App.Writer, format, args...)
}

// openInput opens path for reading, "-" being stdin. The size is -1 when
// unknown.
func openInput(c *cli.Context, path string) (io.ReadCloser, int64, error) {
	if path == "-" {
		return io.NopCloser(c.App.Reader), -1, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", dedup.ErrStreamRead, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("%w: %w", dedup.ErrStreamRead, err)
	}
	if !info.Mode().IsRegular() {
		return f, -1, nil
	}
	return f, info.Size(), nil
}
