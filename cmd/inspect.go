package cmd

import (
	"errors"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/zhengshuai-xiao/git-fastcdc/pkg/catalog"
	"github.com/zhengshuai-xiao/git-fastcdc/pkg/dedup"
)

func cmdInspect() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Action:    inspect,
		Category:  "INSPECT",
		Usage:     "Print the header and entries of a manifest",
		ArgsUsage: "MANIFEST",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "entries",
				Usage: "list every entry as well",
			},
			&cli.BoolFlag{
				Name:  "check",
				Usage: "also report the catalog state and entries missing from the store",
			},
		},
	}
}

func inspect(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError("inspect needs exactly one MANIFEST")
	}
	path := c.Args().First()
	m, err := dedup.ReadFile(path)
	if err != nil {
		return err
	}

	printf(c, "manifest:      %s\n", path)
	printf(c, "version:       %d\n", m.Version)
	printf(c, "total length:  %s (%d bytes)\n", humanize.IBytes(m.TotalLength), m.TotalLength)
	printf(c, "chunking:      min %d avg %d max %d normalization %d\n",
		m.Chunking.MinSize, m.Chunking.AvgSize, m.Chunking.MaxSize, m.Chunking.Normalization)
	printf(c, "entries:       %d\n", len(m.Entries))
	printf(c, "unique chunks: %d (%s)\n", m.Digests().Len(), humanize.IBytes(m.UniqueLength()))

	if c.Bool("entries") {
		var offset uint64
		for i, e := range m.Entries {
			printf(c, "%d\t%d\t%d\t%s\n", i+1, offset, e.Length, e.Digest)
			offset += e.Length
		}
	}

	if c.Bool("check") {
		s, _, err := openStore(c)
		if err != nil {
			return err
		}
		unlock, err := s.Lock(c.Context, false, lockTimeout)
		if err != nil {
			return err
		}
		defer unlock()
		if err := showCatalogState(c, path, m); err != nil {
			return err
		}

		var missing []dedup.Digest
		for _, d := range m.Digests().Elements() {
			ok, err := s.Exists(c.Context, d)
			if err != nil {
				return err
			}
			if !ok {
				printf(c, "missing %s\n", d)
				missing = append(missing, d)
			}
		}
		if len(missing) > 0 {
			return dedup.MissingChunk(missing[0])
		}
	}
	return nil
}

func showCatalogState(c *cli.Context, path string, m *dedup.Manifest) error {
	cat, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer cat.Close()

	registered, err := cat.Lookup(path)
	switch {
	case errors.Is(err, catalog.ErrNotRegistered):
		printf(c, "catalog:       not registered\n")
	case err != nil:
		return err
	case registered.Equal(m):
		printf(c, "catalog:       registered\n")
	default:
		printf(c, "catalog:       registered with different content (%d entries)\n", len(registered.Entries))
	}
	return nil
}
