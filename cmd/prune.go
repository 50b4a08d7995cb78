package cmd

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/zhengshuai-xiao/git-fastcdc/internal"
	"github.com/zhengshuai-xiao/git-fastcdc/pkg/catalog"
	"github.com/zhengshuai-xiao/git-fastcdc/pkg/dedup"
)

func cmdPrune() *cli.Command {
	return &cli.Command{
		Name:      "prune",
		Action:    prune,
		Category:  "STORE",
		Usage:     "Delete chunks no manifest references",
		ArgsUsage: "[MANIFEST|DIR...]",
		Description: `
			Collects the chunks referenced by every manifest in the catalog, and by the
			given manifests and directories searched for *.cdc files, then deletes all
			other entries older than --grace. A manifest that cannot be read aborts the
			run before anything is deleted. Prune waits for running store commands to
			finish and blocks new ones while it runs.

			Examples:
			$ git-fastcdc prune --dry-run
			$ git-fastcdc prune --grace 2d ~/projects`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"n"},
				Usage:   "report what would be deleted",
			},
			&cli.StringFlag{
				Name:  "grace",
				Value: "1h",
				Usage: "keep unreferenced chunks younger than this, e.g. 30m, 2d",
			},
		},
	}
}

func prune(c *cli.Context) error {
	grace, err := internal.ParseDuration(c.String("grace"))
	if err != nil {
		return usageError("--grace: %v", err)
	}
	s, _, err := openStore(c)
	if err != nil {
		return err
	}
	unlock, err := s.Lock(c.Context, true, lockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	cat, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	roots := []dedup.ManifestSource{cat}
	if c.NArg() > 0 {
		roots = append(roots, dedup.ManifestFiles{Paths: c.Args().Slice(), Skip: s.Root()})
	}
	stats, err := dedup.Prune(c.Context, s, roots, dedup.PruneOptions{
		DryRun:      c.Bool("dry-run"),
		GracePeriod: grace,
	})
	if err != nil {
		return err
	}

	verb := "deleted"
	if c.Bool("dry-run") {
		verb = "would delete"
	}
	printf(c, "%d manifests reference %d chunks; %d entries scanned, %s %d (%s), %d kept by --grace\n",
		stats.Manifests, stats.LiveChunks, stats.Scanned, verb, stats.Deleted,
		internal.FormatBytes(uint64(stats.DeletedBytes)), stats.Young)
	if stats.TempRemoved > 0 {
		printf(c, "removed %d abandoned temp files\n", stats.TempRemoved)
	}
	return nil
}

func cmdForget() *cli.Command {
	return &cli.Command{
		Name:      "forget",
		Action:    forget,
		Category:  "STORE",
		Usage:     "Drop manifests from the catalog so prune can collect their chunks",
		ArgsUsage: "MANIFEST...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "list",
				Usage: "list the registered manifests instead",
			},
		},
	}
}

func forget(c *cli.Context) error {
	if c.NArg() == 0 && !c.Bool("list") {
		return usageError("forget needs at least one MANIFEST")
	}
	cat, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	if c.Bool("list") {
		paths, err := cat.Paths()
		if err != nil {
			return err
		}
		for _, p := range paths {
			printf(c, "%s\n", p)
		}
		return nil
	}

	var errs []error
	for _, path := range c.Args().Slice() {
		if err := cat.Forget(path); err != nil {
			if errors.Is(err, catalog.ErrNotRegistered) {
				logger.Warnf("%v", err)
			}
			errs = append(errs, err)
			continue
		}
		printf(c, "forgot %s\n", path)
	}
	return errors.Join(errs...)
}
