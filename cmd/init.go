package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/zhengshuai-xiao/git-fastcdc/internal"
	"github.com/zhengshuai-xiao/git-fastcdc/internal/compression"
	"github.com/zhengshuai-xiao/git-fastcdc/pkg/dedup"
)

func cmdInit() *cli.Command {
	return &cli.Command{
		Name:     "init",
		Action:   initStore,
		Category: "STORE",
		Usage:    "Create a chunk store",
		Description: `
			Creates the store directory named by --store with its config.yaml. The
			chunking settings become the defaults of later store commands.

			Examples:
			$ git-fastcdc init
			$ git-fastcdc --store /data/cdc init --compression zlib --avg 256KiB`,
		Flags: append(chunkingFlags(),
			&cli.StringFlag{
				Name:  "compression",
				Value: "none",
				Usage: fmt.Sprintf("compress new entries with one of %v", compression.Names()),
			},
			&cli.BoolFlag{
				Name:  "no-verify",
				Usage: "do not rehash chunks when reading them back",
			},
			&cli.StringFlag{
				Name:  "min-version",
				Usage: "refuse clients older than this version",
			},
		),
	}
}

func initStore(c *cli.Context) error {
	if c.NArg() > 0 {
		return usageError("init takes no arguments")
	}
	cfg := internal.DefaultStoreConfig()
	ch, err := chunkingFor(c, cfg.Chunking, -1)
	if err != nil {
		return err
	}
	if c.IsSet("avg") && c.String("avg") == autoSize {
		return usageError("a store default cannot be --avg auto, pass it to store instead")
	}
	cfg.Chunking = internal.ChunkingConfig{
		MinSize:       ch.MinSize,
		AvgSize:       ch.AvgSize,
		MaxSize:       ch.MaxSize,
		Normalization: ch.Normalization,
	}
	cfg.Compression = c.String("compression")
	cfg.Verify = !c.Bool("no-verify")
	cfg.MinVersion = c.String("min-version")

	root := c.String("store")
	if err := dedup.InitPOSIXStore(root, cfg); err != nil {
		return err
	}
	abs, _ := filepath.Abs(root)
	printf(c, "Initialized chunk store in %s\n", abs)
	return nil
}
