package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"coderag/internal/chunker"
	"coderag/internal/chunker/languages"
	"coderag/internal/config"
	"coderag/internal/embedder"
	"coderag/internal/index"
	"coderag/internal/llm"
	"coderag/internal/store"
	"coderag/internal/tui"
	"coderag/internal/walker"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	flagConfig    string
	flagVerbose   bool
	flagOllama    string
	flagModel     string
	flagChatModel string
)

// Loaded once per invocation in PersistentPreRunE.
var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "coderag",
	Short:         "Incremental semantic search over your codebase",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, tui.Error("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ./.coderag.toml or ./.coderag.json)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagOllama, "ollama", "", "ollama base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "embedding model (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagChatModel, "chat-model", "", "generative model for ask and chat (overrides config)")
}

// setup loads .env, the config file, environment overrides and flags, in
// that order of increasing precedence.
func setup(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("could not load .env", "err", err)
	}

	path := flagConfig
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		path = config.Find(wd)
	}

	var err error
	cfg, err = config.Load(path)
	if err != nil {
		if flagConfig != "" && !errors.Is(err, config.ErrMalformed) {
			return err
		}
		logger.Warn("using default config", "err", err)
	}
	cfg.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("ollama") {
		cfg.OllamaURL = flagOllama
	}
	if flags.Changed("model") {
		cfg.EmbeddingModel = flagModel
	}
	if flags.Changed("chat-model") {
		cfg.ChatModel = flagChatModel
	}
	return cfg.Validate()
}

// quietLogs drops log output below warnings unless --verbose is set.
func quietLogs() {
	if flagVerbose {
		return
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// projectRoot returns the absolute directory named by args[0], or the
// working directory.
func projectRoot(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", root)
	}
	return root, nil
}

// openStore opens the project's index. Unless create is set, a missing
// index is an error telling the user to build one.
func openStore(root string, create bool) (*store.SQLiteStore, error) {
	dbPath := cfg.DBPath(root)
	if !create {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("index not found at %s\nRun 'coderag index' first to build the index", dbPath)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return st, nil
}

func newEmbedder(ctx context.Context) (embedder.Embedder, error) {
	return embedder.New(ctx, embedder.Config{
		Provider:    cfg.EmbeddingProvider,
		Model:       cfg.EmbeddingModel,
		OllamaURL:   cfg.OllamaURL,
		APIKey:      cfg.GeminiAPIKey,
		BatchSize:   cfg.EmbedBatchSize,
		Concurrency: cfg.EmbedConcurrency,
	})
}

func newGenerator(ctx context.Context) (llm.Generator, error) {
	return llm.New(ctx, llm.Config{
		Provider:  cfg.ChatProvider,
		Model:     cfg.ChatModel,
		OllamaURL: cfg.OllamaURL,
		APIKey:    cfg.GeminiAPIKey,
	})
}

var registry = languages.NewRegistry()

func scanOptions() walker.Options {
	return walker.Options{
		Include:     cfg.FilePatterns,
		Ignore:      cfg.IgnorePatterns,
		MaxFileSize: cfg.MaxFileSize,
	}
}

func newCoordinator(root string, st store.Store, emb embedder.Embedder) *index.Coordinator {
	return index.New(index.Config{
		Store:      st,
		Embedder:   emb,
		Extractor:  chunker.NewExtractor(registry),
		LedgerPath: cfg.LedgerPath(root),
		Scan:       scanOptions(),
		Logger:     logger,
	})
}
