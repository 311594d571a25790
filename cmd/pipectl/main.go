package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/entitypipe/demo"
	"github.com/kbukum/entitypipe/loader"
	"github.com/kbukum/entitypipe/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	logLevel  string
	logFormat string
}

func rootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:   "pipectl",
		Short: "Validate, inspect and run entity pipelines",
		Long: `pipectl works with YAML pipeline definitions.

Each pipeline chains processors over an entity type; processors may carry
a condition and pipelines may reference each other by name.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "console", "log format (console, json)")

	root.AddCommand(validateCmd(&g))
	root.AddCommand(graphCmd(&g))
	root.AddCommand(runCmd(&g))
	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())
	return root
}

func (g *globalFlags) logger(cmd *cobra.Command) *logger.Logger {
	cfg := logger.Config{Level: g.logLevel, Format: g.logFormat, Timestamp: true}
	return logger.NewWithWriter(&cfg, "pipectl", cmd.ErrOrStderr())
}

// newCatalog returns the catalog every command builds with.
func newCatalog() (*loader.Catalog, error) {
	cat := loader.NewCatalog()
	if err := demo.RegisterCatalog(cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// load reads every path, directories recursively, into a new loader.
func load(log *logger.Logger, strict bool, paths []string) (*loader.Loader, error) {
	cat, err := newCatalog()
	if err != nil {
		return nil, err
	}
	l := loader.New(cat, loader.WithLogger(log), loader.WithStrict(strict))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			err = l.LoadDir(p)
		} else {
			err = l.LoadFile(p)
		}
		if err != nil {
			return nil, err
		}
	}
	return l, nil
}
