package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/zhengshuai-xiao/git-fastcdc/internal"
	"github.com/zhengshuai-xiao/git-fastcdc/pkg/dedup"
)

func cmdFsck() *cli.Command {
	return &cli.Command{
		Name:     "fsck",
		Action:   fsck,
		Category: "STORE",
		Usage:    "Verify every chunk in the store",
		Description: `
			Reads and rehashes every entry, then checks that every chunk referenced by a
			cataloged manifest exists. Nothing is repaired or deleted. The exit code is
			6 when a chunk is corrupt and 5 when one is missing.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-catalog",
				Usage: "only verify entries, do not look for missing chunks",
			},
		},
	}
}

func fsck(c *cli.Context) error {
	s, _, err := openStore(c)
	if err != nil {
		return err
	}
	unlock, err := s.Lock(c.Context, false, lockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	var roots []dedup.ManifestSource
	if !c.Bool("no-catalog") {
		cat, err := openCatalog(c)
		if err != nil {
			return err
		}
		defer cat.Close()
		roots = append(roots, cat)
	}

	report, err := dedup.Fsck(c.Context, s, roots...)
	if err != nil {
		return err
	}
	for _, d := range report.Corrupt {
		printf(c, "corrupt %s\n", d)
	}
	for _, d := range report.Missing {
		printf(c, "missing %s\n", d)
	}
	printf(c, "checked %d entries (%s): %d corrupt, %d missing\n",
		report.Checked, internal.FormatBytes(uint64(report.Bytes)), len(report.Corrupt), len(report.Missing))

	switch {
	case len(report.Corrupt) > 0:
		return fmt.Errorf("fsck: %w", dedup.CorruptChunk(report.Corrupt[0], "%d corrupt entries", len(report.Corrupt)))
	case len(report.Missing) > 0:
		return fmt.Errorf("fsck: %d missing: %w", len(report.Missing), dedup.MissingChunk(report.Missing[0]))
	}
	return nil
}
