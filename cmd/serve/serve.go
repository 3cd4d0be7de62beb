package serve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/scan-io-git/secret-hook/internal/config"
	"github.com/scan-io-git/secret-hook/internal/gitlab"
	"github.com/scan-io-git/secret-hook/internal/logger"
	"github.com/scan-io-git/secret-hook/internal/rulesource"
	"github.com/scan-io-git/secret-hook/internal/scanner"
	"github.com/scan-io-git/secret-hook/internal/webhook"
	"github.com/scan-io-git/secret-hook/pkg/shared/httpclient"
)

// RunOptionsServe holds the arguments for the serve command.
type RunOptionsServe struct {
	Listen  string
	Rules   string
	Workers int
}

var (
	AppConfig         *config.Config
	serveOptions      RunOptionsServe
	exampleServeUsage = `  # Serve webhooks with the settings from config.yml and the environment
  secrethook serve

  # Serve on a custom address with a default ruleset fetched over HTTP
  secrethook serve --listen :9000 --rules https://rules.example.com/secrethook.yaml

  # Legacy environment variables are honoured as well
  GITLAB_URI=https://gitlab.example.com GITLAB_TOKEN=... CONFIG_LOCATION=/etc/secrethook/rules.yaml secrethook serve`
)

// ServeCmd represents the serve command.
var ServeCmd = &cobra.Command{
	Use:                   "serve [--listen ADDR] [--rules PATH|URL] [-j WORKERS]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleServeUsage,
	Short:                 "Receive GitLab merge request webhooks and report secret scan verdicts as commit statuses",
	RunE:                  runServeCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// runServeCommand executes the serve command.
func runServeCommand(cmd *cobra.Command, args []string) error {
	log := logger.NewLogger(AppConfig, "core-serve")

	if err := validateServeArgs(AppConfig, &serveOptions); err != nil {
		log.Error("invalid serve arguments", "error", err)
		return err
	}
	applyServeOptions(AppConfig, &serveOptions)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, cleanup, err := buildHandler(ctx, AppConfig, log)
	if err != nil {
		log.Error("failed to initialise webhook handler", "error", err)
		return err
	}
	defer cleanup()

	listener, err := net.Listen("tcp", AppConfig.Server.Listen)
	if err != nil {
		log.Error("failed to listen", "address", AppConfig.Server.Listen, "error", err)
		return err
	}

	return serve(ctx, newServer(AppConfig, handler.Routes()), listener, AppConfig.Server, log)
}

// buildHandler wires the GitLab client, the ruleset resolver and the scanner into a webhook handler.
func buildHandler(ctx context.Context, cfg *config.Config, log hclog.Logger) (*webhook.Handler, func(), error) {
	client, err := gitlab.New(cfg, log.Named("gitlab"))
	if err != nil {
		return nil, nil, err
	}

	restyClient := httpclient.InitializeRestyClient(log.Named("http"), cfg)
	defaultSession, err := rulesource.LoadDefault(ctx, cfg.Scan.Rules, restyClient, log.Named("rules"))
	if err != nil {
		return nil, nil, err
	}

	resolver := rulesource.NewResolver(client, defaultSession, config.RepoConfigCacheTTL(cfg), log.Named("rules"))
	handler := webhook.NewHandler(
		client,
		resolver,
		scanner.New(cfg.Scan.Workers, log.Named("scanner")),
		webhook.Options{
			Secret:       cfg.GitLab.WebhookSecret,
			EventTimeout: cfg.Scan.EventTimeout,
		},
		log.Named("webhook"),
	)
	return handler, resolver.Close, nil
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
}

// serve runs server on listener until ctx is cancelled, then drains in-flight
// events within the shutdown timeout.
func serve(ctx context.Context, server *http.Server, listener net.Listener, cfg config.Server, log hclog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening for webhooks", "address", listener.Addr().String())
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		log.Error("server stopped", "error", err)
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// Initialize flags for the serve command.
func init() {
	ServeCmd.Flags().StringVarP(&serveOptions.Listen, "listen", "l", "", "Address to listen on, overrides server.listen.")
	ServeCmd.Flags().StringVarP(&serveOptions.Rules, "rules", "r", "", "Path or URL of the default ruleset, overrides scan.rules.")
	ServeCmd.Flags().IntVarP(&serveOptions.Workers, "workers", "j", 0, "Number of files scanned concurrently per event, overrides scan.workers.")
	ServeCmd.Flags().BoolP("help", "h", false, "Show help for the serve command.")
}
