package cmd

import (
	"errors"
	"fmt"

	"coderag/internal/rag"
	"coderag/internal/tui"

	"github.com/spf13/cobra"
)

var flagAskLimit int

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question using the most relevant indexed code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := args[0]
		ctx := cmd.Context()

		gen, err := newGenerator(ctx)
		if err != nil {
			return err
		}

		fmt.Println("Question: " + tui.Title(question))
		results, closeStore, err := retrieve(ctx, question, flagAskLimit)
		if err != nil {
			return err
		}
		defer closeStore()

		fmt.Println(tui.Dim("Analyzing relevant code..."))
		answer, err := rag.Answer(ctx, gen, question, results)
		if errors.Is(err, rag.ErrNoContext) {
			fmt.Println(tui.Error("No relevant code found"))
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Println()
		printMarkdown(answer)
		fmt.Println(tui.Dim(fmt.Sprintf("Based on %d code chunks", len(results))))
		return nil
	},
}

func init() {
	askCmd.Flags().IntVarP(&flagAskLimit, "limit", "l", 3, "context chunks to use")
	rootCmd.AddCommand(askCmd)
}
