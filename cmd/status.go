package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"coderag/internal/index"
	"coderag/internal/llm"
	"coderag/internal/tui"

	"github.com/spf13/cobra"
)

var flagStatusFiles bool

var statusCmd = &cobra.Command{
	Use:   "status [dir]",
	Short: "Show what is indexed and whether the model backend is reachable",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		root, err := projectRoot(args)
		if err != nil {
			return err
		}

		if _, err := os.Stat(cfg.DBPath(root)); errors.Is(err, os.ErrNotExist) {
			fmt.Println(tui.Warn("No index found - run 'coderag index' first"))
			return nil
		}
		st, err := openStore(root, false)
		if err != nil {
			return err
		}
		defer st.Close()

		// Status never embeds, so no embedder is needed.
		coord := index.New(index.Config{
			Store:      st,
			LedgerPath: cfg.LedgerPath(root),
			Logger:     logger,
		})
		s, err := coord.Status(ctx)
		if err != nil {
			return err
		}

		fmt.Println(tui.Title("Index: ") + cfg.IndexDir(root))
		fmt.Printf("Indexed chunks:  %d\n", s.Chunks)
		fmt.Printf("Indexed files:   %d\n", len(s.Files))
		fmt.Printf("Ledger entries:  %d\n", s.LedgerEntries)
		model := s.EmbeddingModel
		if model == "" {
			model = "(none)"
		}
		fmt.Printf("Embedding model: %s\n", model)
		if s.EmbeddingModel != "" && s.EmbeddingModel != cfg.EmbeddingModel {
			fmt.Println(tui.Warn(fmt.Sprintf("Configured model is %s; the next index run will re-embed everything.", cfg.EmbeddingModel)))
		}

		if flagStatusFiles && len(s.Files) > 0 {
			fmt.Println(tui.FilesTable(s.Files))
		}

		printBackendStatus(cmd)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&flagStatusFiles, "files", false, "list indexed files")
	rootCmd.AddCommand(statusCmd)
}

// printBackendStatus reports whether Ollama is up and has the configured
// models, when Ollama is in use.
func printBackendStatus(cmd *cobra.Command) {
	var want []string
	if strings.EqualFold(cfg.EmbeddingProvider, llm.ProviderOllama) {
		want = append(want, cfg.EmbeddingModel)
	}
	if strings.EqualFold(cfg.ChatProvider, llm.ProviderOllama) {
		want = append(want, cfg.ChatModel)
	}
	if len(want) == 0 {
		return
	}

	models, err := llm.ListOllamaModels(cmd.Context(), cfg.OllamaURL)
	if err != nil {
		fmt.Println(tui.Error(fmt.Sprintf("Ollama at %s: %v", cfg.OllamaURL, err)))
		return
	}
	fmt.Println(tui.Success(fmt.Sprintf("Ollama at %s: reachable", cfg.OllamaURL)))
	for _, name := range want {
		if llm.HasModel(models, name) {
			fmt.Printf("  %s %s\n", tui.Success("✓"), name)
		} else {
			fmt.Printf("  %s %s %s\n", tui.Error("✗"), name, tui.Dim("(run 'ollama pull "+name+"')"))
		}
	}
}
