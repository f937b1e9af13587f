package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"coderag/internal/llm"
	"coderag/internal/rag"
	"coderag/internal/tui"

	"github.com/spf13/cobra"
)

// chatHistory bounds the turns kept for follow-up questions.
const chatHistory = 20

var flagK int

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions about your indexed codebase",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		root, err := projectRoot(nil)
		if err != nil {
			return err
		}
		st, err := openStore(root, false)
		if err != nil {
			return err
		}
		defer st.Close()

		emb, err := newEmbedder(ctx)
		if err != nil {
			return err
		}
		gen, err := newGenerator(ctx)
		if err != nil {
			return err
		}
		retriever := rag.NewRetriever(st, emb, cfg.SearchCacheSize)

		if isTerminal(os.Stdin) && isTerminal(os.Stdout) {
			quietLogs()
			return tui.RunChat(ctx, tui.ChatConfig{Retriever: retriever, Generator: gen, K: flagK})
		}

		var history []llm.Message
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("coderag chat (type /help for commands, /exit to quit)")
		fmt.Println()

		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				continue
			}

			switch question {
			case "/exit", "/quit":
				fmt.Println("Goodbye.")
				return nil
			case "/clear":
				history = nil
				fmt.Println("Conversation cleared.")
				continue
			case "/help":
				fmt.Println("Commands:")
				fmt.Println("  /clear  - clear conversation history")
				fmt.Println("  /exit   - quit chat")
				fmt.Println("  /help   - show this help")
				continue
			}

			results, err := retriever.Search(ctx, question, flagK)
			if err != nil {
				fmt.Fprintf(os.Stderr, "retrieval error: %v\n", err)
				continue
			}
			if len(results) == 0 {
				fmt.Println("No relevant code found.")
				continue
			}

			answer, err := gen.Generate(ctx, rag.BuildMessages(results, history, question))
			if err != nil {
				fmt.Fprintf(os.Stderr, "llm error: %v\n", err)
				continue
			}

			fmt.Println()
			fmt.Println(answer)
			fmt.Println()

			history = append(history,
				llm.Message{Role: llm.RoleUser, Content: question},
				llm.Message{Role: llm.RoleAssistant, Content: answer},
			)
			if len(history) > chatHistory {
				history = history[len(history)-chatHistory:]
			}
		}

		return scanner.Err()
	},
}

func init() {
	chatCmd.Flags().IntVar(&flagK, "k", 10, "number of chunks to retrieve per question")
	rootCmd.AddCommand(chatCmd)
}
