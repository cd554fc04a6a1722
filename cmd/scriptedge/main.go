// Command scriptedge is the project CLI from spec.md §6: scaffold a new
// project, build its bundle, or run it as an HTTP edge server. It is a
// thin github.com/spf13/cobra tree over internal/scaffold,
// internal/buildcache, internal/tenant, internal/dispatch, and
// internal/server — the same "cobra root plus a handful of leaf
// RunEs" shape used throughout the retrieved pack's own CLIs.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scriptedge/scriptedge/internal/buildcache"
	"github.com/scriptedge/scriptedge/internal/config"
	"github.com/scriptedge/scriptedge/internal/dispatch"
	"github.com/scriptedge/scriptedge/internal/logging"
	"github.com/scriptedge/scriptedge/internal/metrics"
	"github.com/scriptedge/scriptedge/internal/scaffold"
	"github.com/scriptedge/scriptedge/internal/server"
	"github.com/scriptedge/scriptedge/internal/tenant"
)

const (
	defaultEntryFile  = "main.ts"
	defaultConfigFile = "config.yml"
	defaultBuildDir   = ".build"
)

// usageError marks an argument/flag problem as distinct from a runtime
// failure, so main can exit 2 instead of 1.
type usageError struct{ err error }

func (u *usageError) Error() string { return u.err.Error() }
func (u *usageError) Unwrap() error { return u.err }

func newUsageError(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var usage *usageError
		if errors.As(err, &usage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scriptedge",
		Short:         "Scaffold, build, and serve multi-tenant JavaScript edge projects",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newInitCmd(), newBuildCmd(), newRunCmd())
	return root
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [name]",
		Short: "Scaffold a new project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			if name == "" {
				var err error
				name, err = promptProjectName(cmd)
				if err != nil {
					return err
				}
			}
			if name == "" {
				return newUsageError("a project name is required")
			}

			if err := scaffold.Init(name, name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scaffolded %s in ./%s\n", name, name)
			return nil
		},
	}
}

func promptProjectName(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "project name: ")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading project name: %w", err)
		}
		return "", nil
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func newBuildCmd() *cobra.Command {
	var describeRoutes bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Bundle and minify the project in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolving working directory: %w", err)
			}

			result, err := buildcache.Build(dir, defaultEntryFile, defaultConfigFile, defaultBuildDir)
			if err != nil {
				return err
			}

			if describeRoutes {
				return describeRoutesJSON(cmd, result.ConfigPath)
			}

			status := "built"
			if result.Hit {
				status = "cached"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", status, result.BundlePath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&describeRoutes, "describe-routes", false, "dump the resolved route table as JSON instead of the bundle path")
	return cmd
}

// routeDescriptor is one row of the --describe-routes JSON dump: a
// single (pattern, method, handler) triple, spec.md §10's route
// introspection feature.
type routeDescriptor struct {
	Pattern string `json:"pattern"`
	Method  string `json:"method"`
	Handler string `json:"handler"`
}

func describeRoutesJSON(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var rows []routeDescriptor
	for _, decl := range cfg.Routes {
		for _, entry := range decl.Entries {
			rows = append(rows, routeDescriptor{
				Pattern: decl.Path,
				Method:  string(entry.Method),
				Handler: entry.Handler,
			})
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func newRunCmd() *cobra.Command {
	var port int
	var host string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build and serve the project in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port <= 0 || port > 65535 {
				return newUsageError("--port must be between 1 and 65535, got %d", port)
			}
			return runServe(port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (required)")
	cmd.Flags().StringVar(&host, "host", "localhost", "tenant host this project is served as")

	return cmd
}

func runServe(port int, host string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	result, err := buildcache.Build(dir, defaultEntryFile, defaultConfigFile, defaultBuildDir)
	if err != nil {
		return err
	}

	cfg, err := config.Load(result.ConfigPath)
	if err != nil {
		return err
	}

	bundle, err := os.ReadFile(result.BundlePath)
	if err != nil {
		return fmt.Errorf("reading bundle: %w", err)
	}

	swappable, err := tenant.New(string(bundle), cfg.Routes)
	if err != nil {
		return fmt.Errorf("loading tenant: %w", err)
	}

	registry := tenant.NewRegistry()
	registry.Register(host, swappable)

	logger := logging.MustNew(logging.WithServiceName(cfg.Name))
	recorder := metrics.New()
	handler := dispatch.New(registry, logger, recorder)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := server.Options{
		Addr:            fmt.Sprintf(":%d", port),
		ServiceName:     cfg.Name,
		ShutdownTimeout: 10 * time.Second,
		Logger:          logger,
		Metrics:         recorder,
	}

	return server.Run(ctx, opts, handler)
}
