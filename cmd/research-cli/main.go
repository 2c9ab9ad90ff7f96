// Command research-cli runs the research pipeline from a terminal.
//
// It builds the same research service the API serves, in-process, from
// the local files folder and the configured web providers. There is no
// database or event bus: history and analytics are not recorded.
//
// Usage:
//
//	research-cli ask "coral reef bleaching"
//	research-cli repl
//	research-cli index stats
//	research-cli index query "ocean temperature" -k 5
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/llm"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/research"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/sources/arxiv"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/sources/wikipedia"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/redis"
)

var (
	configPath string
	filesDir   string
	verbose    bool
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "research-cli",
	Short: "Multi-agent research assistant",
	Long: `Research a topic with a drafting agent, two critics and a synthesizer,
grounded in local documents and optionally Wikipedia and arXiv.

Put PDF, Markdown or text files in the files folder before asking.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logger.SetupWriter(os.Stderr, level, "text")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults plus RA_* env when empty)")
	rootCmd.PersistentFlags().StringVar(&filesDir, "files", "", "documents folder (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "research time budget (overrides config)")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(indexCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if filesDir != "" {
		cfg.Corpus.FilesDir = filesDir
	}
	if timeout > 0 {
		cfg.Pipeline.Timeout = timeout
	}
	return cfg, nil
}

// bootService builds and initializes an in-process research service. The
// returned cleanup closes the optional Redis connection.
func bootService(ctx context.Context) (*research.Service, *config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	cleanup := func() {}
	deps := research.Deps{
		Generator: llm.New(cfg.LLM),
		Providers: []research.Provider{
			{
				Client: wikipedia.New(cfg.Sources.Wikipedia.BaseURL, cfg.Sources.UserAgent, cfg.Sources.Wikipedia.FetchTimeout),
				Config: cfg.Sources.Wikipedia,
			},
			{
				Client: arxiv.New(cfg.Sources.Arxiv.BaseURL, cfg.Sources.UserAgent, cfg.Sources.Arxiv.FetchTimeout),
				Config: cfg.Sources.Arxiv,
			},
		},
		CacheTTL: cfg.Redis.CacheTTL,
	}
	if cfg.Redis.Addr != "" {
		rc, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, fetch cache disabled", "error", err)
		} else {
			deps.Cache = rc
			cleanup = func() { rc.Close() }
		}
	}

	svc, err := research.New(cfg, deps)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	if err := svc.Initialize(ctx); err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("building index from %s: %w", cfg.Corpus.FilesDir, err)
	}
	return svc, cfg, cleanup, nil
}
