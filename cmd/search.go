package cmd

import (
	"context"
	"fmt"
	"os"

	"coderag/internal/rag"
	"coderag/internal/store"
	"coderag/internal/tui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var flagSearchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find the code chunks most similar to a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := args[0]
		ctx := cmd.Context()

		results, closeStore, err := retrieve(ctx, query, flagSearchLimit)
		if err != nil {
			return err
		}
		defer closeStore()

		fmt.Println("Searching for: " + tui.Title(query))
		if len(results) == 0 {
			fmt.Println(tui.Error("No results found"))
			return nil
		}
		printMarkdown(tui.ResultsMarkdown(results, fenceLanguage))
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&flagSearchLimit, "limit", "l", 5, "number of results")
	rootCmd.AddCommand(searchCmd)
}

// retrieve opens the index in the working directory and searches it. The
// returned func closes the store.
func retrieve(ctx context.Context, query string, k int) ([]store.SearchResult, func(), error) {
	root, err := projectRoot(nil)
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(root, false)
	if err != nil {
		return nil, nil, err
	}
	emb, err := newEmbedder(ctx)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	results, err := rag.NewRetriever(st, emb, cfg.SearchCacheSize).Search(ctx, query, k)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return results, func() { st.Close() }, nil
}

func fenceLanguage(path string) string {
	return registry.LanguageName(path)
}

// printMarkdown renders md for a terminal, or prints it raw when stdout is
// redirected.
func printMarkdown(md string) {
	if !isTerminal(os.Stdout) {
		fmt.Println(md)
		return
	}
	width := 100
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = min(w, 120)
	}
	fmt.Print(tui.Markdown(md, width))
}
