package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/zhengshuai-xiao/git-fastcdc/internal"
	"github.com/zhengshuai-xiao/git-fastcdc/pkg/metrics"
)

var logger = internal.GetLogger("cmd")

const metricsKey = "metrics"

func Main(args []string) error {
	cli.VersionFlag = &cli.BoolFlag{
		Name: "version", Aliases: []string{"V"},
		Usage: "print version only",
	}
	// an interrupt cancels the context so that ingest, restore and prune stop
	// between chunks and remove their temp files
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp()
	err := app.RunContext(ctx, reorderOptions(app, args))
	if errno, ok := err.(syscall.Errno); ok && errno == 0 {
		err = nil
	}
	return err
}

func newApp() *cli.App {
	return &cli.App{
		Name:                 "git-fastcdc",
		Usage:                "Store large files as deduplicated content-defined chunks.",
		Version:              internal.Version(),
		Copyright:            "Apache License 2.0",
		HideHelpCommand:      true,
		EnableBashCompletion: true,
		Flags:                globalFlags(),
		Before:               setup,
		After:                writeMetrics,
		Commands: []*cli.Command{
			cmdInit(),
			cmdStore(),
			cmdRestore(),
			cmdChunks(),
			cmdInspect(),
			cmdPrune(),
			cmdForget(),
			cmdFsck(),
			cmdStats(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "store",
			Aliases: []string{"s"},
			EnvVars: []string{"FASTCDC_STORE"},
			Value:   ".cdc",
			Usage:   "chunk store directory",
		},
		&cli.StringFlag{
			Name:    "loglevel",
			EnvVars: []string{"FASTCDC_LOGLEVEL"},
			Value:   "info",
			Usage:   "log level: trace/debug/info/warn/error",
		},
		&cli.StringFlag{
			Name:  "logfile",
			Usage: "write logs to this file, rotated daily, instead of stderr",
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "disable colors in log output",
		},
		&cli.BoolFlag{
			Name:    "read-only",
			EnvVars: []string{"FASTCDC_READ_ONLY"},
			Usage:   "the store is on read-only media: skip the store lock and refuse to write",
		},
		&cli.StringFlag{
			Name:    "metrics-file",
			EnvVars: []string{"FASTCDC_METRICS_FILE"},
			Usage:   "write store metrics in prometheus text format to this file on exit",
		},
	}
}

func setup(c *cli.Context) error {
	lvl, err := internal.ParseLogLevel(c.String("loglevel"))
	if err != nil {
		return usageError("%v", err)
	}
	internal.SetLogLevel(lvl)
	if c.Bool("no-color") {
		internal.DisableLogColor()
	}
	if f := c.String("logfile"); f != "" {
		if filepath.Base(f) == f {
			f = filepath.Join(internal.GetDefaultLogDir(), f)
		}
		if err := internal.SetOutFile(f); err != nil {
			return err
		}
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[metricsKey] = metrics.NewRegistry()
	return nil
}

func registry(c *cli.Context) *metrics.Registry {
	reg, _ := c.App.Metadata[metricsKey].(*metrics.Registry)
	return reg
}

func storeMetrics(c *cli.Context) *metrics.Metrics {
	if reg := registry(c); reg != nil {
		return reg.Metrics
	}
	return nil
}

func writeMetrics(c *cli.Context) error {
	path := c.String("metrics-file")
	reg := registry(c)
	if path == "" || reg == nil {
		return nil
	}
	return reg.WriteTextfile(path)
}

func reorderOptions(app *cli.App, args []string) []string {
	var newArgs = []string{args[0]}
	var others []string
	globalFlags := append(app.Flags, cli.VersionFlag)
	for i := 1; i < len(args); i++ {
		option := args[i]
		if ok, hasValue := isFlag(globalFlags, option); ok {
			newArgs = append(newArgs, option)
			if hasValue {
				i++
				if i >= len(args) {
					logger.Fatalf("option %s requires value", option)
				}
				newArgs = append(newArgs, args[i])
			}
		} else {
			others = append(others, option)
		}
	}
	// no command
	if len(others) == 0 {
		return newArgs
	}
	cmdName := others[0]
	var cmd *cli.Command
	for _, c := range app.Commands {
		if c.Name == cmdName || slices.Contains(c.Aliases, cmdName) {
			cmd = c
			break
		}
	}
	if cmd == nil {
		// can't recognize the command, skip it
		return append(newArgs, others...)
	}

	newArgs = append(newArgs, cmdName)
	args, others = others[1:], nil
	// -h is valid for all the commands
	cmdFlags := append(cmd.Flags, cli.HelpFlag)
	for i := 0; i < len(args); i++ {
		option := args[i]
		if option == "--" {
			others = append(others, args[i:]...)
			break
		}
		if ok, hasValue := isFlag(cmdFlags, option); ok {
			newArgs = append(newArgs, option)
			if hasValue && len(args[i+1:]) > 0 {
				i++
				newArgs = append(newArgs, args[i])
			}
		} else {
			// "-" alone names stdin
			if len(option) > 1 && strings.HasPrefix(option, "-") && !slices.Contains(args, "--generate-bash-completion") {
				logger.Fatalf("unknown option: %s", option)
			}
			others = append(others, option)
		}
	}
	return append(newArgs, others...)
}

func isFlag(flags []cli.Flag, option string) (bool, bool) {
	if !strings.HasPrefix(option, "-") || option == "-" {
		return false, false
	}
	// --V or -v work the same
	option = strings.TrimLeft(option, "-")
	for _, flag := range flags {
		_, isBool := flag.(*cli.BoolFlag)
		for _, name := range flag.Names() {
			if option == name || strings.HasPrefix(option, name+"=") {
				return true, !isBool && !strings.Contains(option, "=")
			}
		}
	}
	return false, false
}
