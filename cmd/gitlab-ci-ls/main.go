package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"

	"github.com/mcncl/gitlab-ci-ls/internal/config"
	"github.com/mcncl/gitlab-ci-ls/internal/lsp"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type stdio struct{}

func (stdio) Read(p []byte) (n int, err error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (n int, err error) { return os.Stdout.Write(p) }
func (stdio) Close() error                      { return nil }

func main() {
	var (
		configPath  string
		logPath     string
		cachePath   string
		showVersion bool
	)

	root := &cobra.Command{
		Use:   "gitlab-ci-ls",
		Short: "Language server for GitLab CI pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Printf("gitlab-ci-ls %s\n", version)
				fmt.Printf("Commit: %s\n", commit)
				fmt.Printf("Built: %s\n", date)
				return nil
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logPath != "" {
				cfg.LogPath = logPath
			}
			if cachePath != "" {
				cfg.CachePath = cachePath
			}
			cfg.Version = version

			logger, err := buildLogger(cfg.LogPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			server, err := lsp.NewServer(cfg, logger.Sugar())
			if err != nil {
				return err
			}

			var rw io.ReadWriteCloser = stdio{}
			stream := jsonrpc2.NewStream(rw)
			conn := jsonrpc2.NewConn(stream)
			server.SetConnection(conn)

			go conn.Go(context.Background(), server.Handler())
			<-conn.Done()
			return nil
		},
	}

	root.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.Flags().StringVar(&logPath, "log-file", "", "log destination (defaults to stderr)")
	root.Flags().StringVar(&cachePath, "cache-path", "", "directory for clones and remote fetches")
	root.Flags().BoolVar(&showVersion, "version", false, "show version information")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildLogger writes structured logs to the given file, or stderr when none
// is configured. Never stdout: that is the protocol channel.
func buildLogger(path string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		cfg.OutputPaths = []string{path}
		cfg.ErrorOutputPaths = []string{path}
	} else {
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}
	return cfg.Build()
}
