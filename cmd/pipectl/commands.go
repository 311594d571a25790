package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbukum/entitypipe/bootstrap"
	"github.com/kbukum/entitypipe/config"
	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/loader"
	"github.com/kbukum/entitypipe/pipeline"
	"github.com/kbukum/entitypipe/source"
	"github.com/kbukum/entitypipe/version"
)

// ─── validate ────────────────────────────────────────────────────────────────

func validateCmd(g *globalFlags) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate <file|dir>...",
		Short: "Check definitions and build every pipeline without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := load(g.logger(cmd), strict, args)
			if err != nil {
				return err
			}
			set, err := l.Build(cmd.Context())
			if err != nil {
				return describe(err)
			}
			defer set.Dispose()
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d pipeline(s) valid\n", len(set.Names()))
			for _, name := range set.Names() {
				b, _ := set.Get(name)
				fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %-10s %s (%d processors)\n", name, b.Kind(), b.EntityType(), len(b.Processors()))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", true, "reject unknown fields")
	return cmd
}

// ─── graph ───────────────────────────────────────────────────────────────────

func graphCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "graph <file|dir>...",
		Short: "Print the pipeline composition as a Graphviz DOT graph",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := load(g.logger(cmd), false, args)
			if err != nil {
				return err
			}
			dot, err := loader.Graph(l.Definitions())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), dot)
			return nil
		},
	}
}

// ─── run ─────────────────────────────────────────────────────────────────────

func runCmd(g *globalFlags) *cobra.Command {
	var (
		files     []string
		input     string
		operation string
		values    []string
	)
	cmd := &cobra.Command{
		Use:   "run <pipeline>",
		Short: "Run one pipeline on a JSON input",
		Example: `  pipectl run entity-cleanup --file pipelines.yaml --input entity.json
  echo '[{"id":"1","active":"ACTIVE"}]' | pipectl run entity-batch -f pipelines.yaml --set tenant=acme`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pctx, err := contextFrom(values, operation)
			if err != nil {
				return err
			}
			data, err := readInput(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			l, err := load(g.logger(cmd), false, files)
			if err != nil {
				return err
			}
			return runPipeline(cmd.Context(), cmd.OutOrStdout(), l, args[0], data, pctx)
		},
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "definition file or directory (repeatable)")
	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON input file, - for stdin")
	cmd.Flags().StringVar(&operation, "operation", "", "operation stored in the context for consumers")
	cmd.Flags().StringArrayVar(&values, "set", nil, "context value as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runPipeline(ctx context.Context, out io.Writer, l *loader.Loader, name string, data []byte, pctx *pipeline.Context) error {
	set, err := l.Build(ctx)
	if err != nil {
		return describe(err)
	}
	defer set.Dispose()

	r, ok := set.Runner(name)
	if !ok {
		return errors.NotFound("pipeline", name)
	}
	res, err := r.Run(ctx, data, pctx)
	if err != nil {
		return describe(err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func contextFrom(values []string, operation string) (*pipeline.Context, error) {
	pctx := pipeline.NewContext()
	for _, kv := range values {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--set %q: expected key=value", kv)
		}
		pctx.Set(k, v)
	}
	if operation != "" {
		source.WithOperation(pctx, operation)
	}
	return pctx, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// describe appends the structured details of an application error.
func describe(err error) error {
	appErr, ok := errors.AsAppError(err)
	if !ok || len(appErr.Details) == 0 {
		return err
	}
	raw, _ := json.MarshalIndent(appErr.Details, "", "  ")
	return fmt.Errorf("%w\n%s", err, raw)
}

// ─── serve ───────────────────────────────────────────────────────────────────

func serveCmd() *cobra.Command {
	var (
		configFile string
		envFile    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline engine and the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []config.LoaderOption
			if configFile != "" {
				opts = append(opts, config.WithConfigFile(configFile))
			}
			if envFile != "" {
				opts = append(opts, config.WithEnvFile(envFile))
			}
			var cfg config.Config
			if err := config.Load("pipectl", &cfg, opts...); err != nil {
				return err
			}
			cat, err := newCatalog()
			if err != nil {
				return err
			}
			app, err := bootstrap.NewApp(cmd.Context(), &cfg, cat)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (default: search config.yml)")
	cmd.Flags().StringVar(&envFile, "env", "", ".env file")
	return cmd
}

// ─── version ─────────────────────────────────────────────────────────────────

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pipectl %s\n", version.GetVersionInfo())
		},
	}
}
