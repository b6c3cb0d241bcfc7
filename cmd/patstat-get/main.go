// Command patstat-get downloads the latest PATSTAT Global edition from the
// EPO and extracts it into a version-named directory.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	patstat "github.com/patent-dev/patstat-get"
	"github.com/patent-dev/patstat-get/internal/config"
	"github.com/patent-dev/patstat-get/internal/fetcher"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitFailure = 1
)

type options struct {
	config    string
	configSet bool // --config given on the command line
	path      string
	api       string
	product   string
	verbose   bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		report(stderr, err)
		return ExitFailure
	}
	return ExitSuccess
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "patstat-get",
		Short: "Download the latest PATSTAT Global edition",
		Long: `Authenticate against the EPO bulk data service, find the latest
PATSTAT Global edition and extract all of its archives into
<path>/<edition>. An existing edition directory is never touched.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.configSet = cmd.Flags().Changed("config")
			return execute(cmd.Context(), opts, stderr)
		},
	}

	cmd.SetOut(stderr)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVarP(&opts.config, "config", "c", config.DefaultFile, "Configuration file to use")
	flags.StringVarP(&opts.path, "path", "p", "", "Path where the datasets will be downloaded (default: data.path from the configuration)")
	flags.StringVar(&opts.api, "api", "", "API variant: bdds or legacy (default: api.variant from the configuration)")
	flags.StringVar(&opts.product, "product", "", "Product name to look for (default \"PATSTAT Global\")")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log requests and download progress")

	return cmd
}

func execute(ctx context.Context, opts *options, stderr io.Writer) error {
	// Do not override environment provided by the runtime.
	_ = godotenv.Load(".env")

	logger := newLogger(stderr, opts.verbose)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger.DebugContext(ctx, "configuration loaded", "api", cfg.API, "path", cfg.Path, "product", cfg.Product)

	catalog, err := patstat.NewCatalog(cfg.Catalog(), patstat.WithLogger(logger))
	if err != nil {
		return err
	}

	f := fetcher.New(catalog, osfs.New(cfg.Path),
		fetcher.WithLogger(logger),
		fetcher.WithProduct(cfg.Product),
	)
	result, err := f.Run(ctx)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "done",
		"edition", result.Delivery.Name,
		"dir", filepath.Join(cfg.Path, result.Dir),
		"files", len(result.Delivery.Files))
	return nil
}

// loadConfig resolves the configuration file and applies environment and
// flag overrides. Nothing here touches the network.
func loadConfig(opts *options) (config.Config, error) {
	path, err := config.Resolve(opts.config, opts.configSet)
	if err != nil {
		return config.Config{}, err
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}

	cfg = cfg.Merge(config.Config{
		Path:    opts.path,
		API:     patstat.API(opts.api),
		Product: opts.product,
	})
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// report prints err and, when the server sent a JSON error body, the body.
func report(w io.Writer, err error) {
	fmt.Fprintf(w, "Error [%s]: %v\n", patstat.Code(err), err)
	if body := patstat.PrettyBody(patstat.ResponseBody(err)); body != "" {
		fmt.Fprintln(w, body)
	}
}
