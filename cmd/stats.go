package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/zhengshuai-xiao/git-fastcdc/internal"
)

func cmdStats() *cli.Command {
	return &cli.Command{
		Name:     "stats",
		Action:   showStats,
		Category: "INSPECT",
		Usage:    "Show store settings and usage",
	}
}

func showStats(c *cli.Context) error {
	s, cfg, err := openStore(c)
	if err != nil {
		return err
	}
	st, err := s.Stats(c.Context)
	if err != nil {
		return err
	}
	cat, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()
	paths, err := cat.Paths()
	if err != nil {
		return err
	}

	printf(c, "store:       %s\n", s.Root())
	printf(c, "uuid:        %s\n", cfg.UUID)
	printf(c, "created:     %s\n", cfg.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	printf(c, "chunking:    min %d avg %d max %d normalization %d\n",
		cfg.Chunking.MinSize, cfg.Chunking.AvgSize, cfg.Chunking.MaxSize, cfg.Chunking.Normalization)
	printf(c, "compression: %s\n", cfg.Compression)
	printf(c, "verify:      %v\n", cfg.Verify)
	printf(c, "entries:     %d\n", st.Entries)
	printf(c, "disk usage:  %s\n", internal.FormatBytes(uint64(st.DiskBytes)))
	printf(c, "manifests:   %d\n", len(paths))
	return nil
}
