package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/zhengshuai-xiao/git-fastcdc/internal"
	"github.com/zhengshuai-xiao/git-fastcdc/pkg/dedup"
)

func cmdRestore() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Action:    restore,
		Category:  "DATA",
		Usage:     "Rebuild files from their manifests",
		ArgsUsage: "MANIFEST...",
		Description: `
			Every MANIFEST is read and its chunks are written, in order, to the file
			named by dropping the .cdc extension. The file is replaced atomically once
			it is complete, so a failed restore leaves no partial output.

			Examples:
			$ git-fastcdc restore big.iso.cdc
			$ git-fastcdc restore --output - dir.tar.cdc | tar x`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output path for a single MANIFEST, \"-\" for standard output",
			},
			&cli.BoolFlag{
				Name:  "no-verify",
				Usage: "skip rehashing chunks as they are read",
			},
			progressFlag(),
		},
	}
}

func restore(c *cli.Context) error {
	manifests := c.Args().Slice()
	if len(manifests) == 0 {
		return usageError("restore needs at least one MANIFEST")
	}
	if c.IsSet("output") && len(manifests) != 1 {
		return usageError("--output needs exactly one MANIFEST")
	}

	s, _, err := openStore(c)
	if err != nil {
		return err
	}
	if c.Bool("no-verify") {
		s.SetVerify(false)
	}
	unlock, err := s.Lock(c.Context, false, lockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	asm := dedup.NewAssembler(s)
	for _, path := range manifests {
		m, err := dedup.ReadFile(path)
		if err != nil {
			return err
		}
		out := c.String("output")
		if out == "" {
			var ok bool
			if out, ok = trimManifestExt(path); !ok {
				return usageError("cannot name the output of %s, pass --output", path)
			}
		}
		if err := restoreOne(c, asm, m, out); err != nil {
			return fmt.Errorf("restore %s: %w", path, err)
		}
		if out != "-" {
			printf(c, "%s -> %s: %s\n", path, out, humanize.IBytes(m.TotalLength))
		}
	}
	return nil
}

func restoreOne(c *cli.Context, asm *dedup.Assembler, m *dedup.Manifest, out string) error {
	r := asm.NewReader(c.Context, m)
	defer r.Close()

	var src io.Reader = r
	if bar := newProgressBar(c, int64(m.TotalLength), "restore "); bar != nil {
		src = bar.NewProxyReader(r)
		defer bar.Finish()
	}

	var n int64
	var err error
	if out == "-" {
		n, err = io.Copy(c.App.Writer, src)
	} else {
		n, err = internal.CopyToFileAtomic(out, src, 0o644)
	}
	if err != nil {
		return err
	}
	logger.Debugf("restored %s: %d bytes from %d entries", out, n, len(m.Entries))
	return nil
}

