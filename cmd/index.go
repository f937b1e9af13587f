package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"coderag/internal/chunker"
	"coderag/internal/index"
	"coderag/internal/tui"
	"coderag/internal/walker"

	"github.com/spf13/cobra"
)

var (
	flagForce bool
	flagClear bool
)

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Index a codebase for search, re-embedding only changed files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot(args)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(root, true)
		if err != nil {
			return err
		}
		defer st.Close()

		emb, err := newEmbedder(ctx)
		if err != nil {
			return err
		}
		spinner := isTerminal(os.Stderr)
		if spinner {
			// Keep log lines from tearing the spinner.
			quietLogs()
		}
		coord := newCoordinator(root, st, emb)

		if flagClear {
			fmt.Println(tui.Warn("Clearing existing index..."))
			if err := coord.Clear(ctx); err != nil {
				return err
			}
		}

		fmt.Printf("Scanning directory: %s\n", root)
		files, err := walker.Scan(root, scanOptions())
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("%w in %s", index.ErrNoFiles, root)
		}
		stats := walker.Summarize(files)
		fmt.Println(tui.ExtensionTable(stats))
		fmt.Printf("Total size: %s\n\n", tui.FormatSize(stats.TotalBytes))

		start := time.Now()
		res, err := runIndex(ctx, root, coord, index.Options{Force: flagForce, Files: files}, spinner)
		if err != nil {
			return err
		}
		printResult(res, time.Since(start))
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "re-index every file even if unchanged")
	indexCmd.Flags().BoolVar(&flagClear, "clear", false, "clear the existing index before indexing")
	rootCmd.AddCommand(indexCmd)
}

// runIndex runs the coordinator, behind a spinner if asked to.
func runIndex(ctx context.Context, root string, coord *index.Coordinator, opts index.Options, spinner bool) (*index.Result, error) {
	if !spinner {
		return coord.Run(ctx, root, opts)
	}
	return tui.RunIndexing(ctx, "Indexing", func(ctx context.Context, progress index.ProgressFunc) (*index.Result, error) {
		opts.OnProgress = progress
		return coord.Run(ctx, root, opts)
	})
}

func printResult(res *index.Result, elapsed time.Duration) {
	if res.FilesProcessed == 0 && res.FilesRemoved == 0 && len(res.Errors) == 0 {
		fmt.Println(tui.Success(fmt.Sprintf("Index is up to date (%d files unchanged).", res.FilesUnchanged)))
		return
	}

	fmt.Printf("Done in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Files:   %d scanned, %d indexed, %d removed, %d unchanged\n",
		res.FilesScanned, res.FilesProcessed, res.FilesRemoved, res.FilesUnchanged)
	fmt.Printf("  Chunks:  %d added\n", res.ChunksAdded)

	for _, fe := range res.Errors {
		reason := fe.Err.Error()
		var xe *chunker.ExtractError
		if errors.As(fe.Err, &xe) {
			reason = xe.Reason
		}
		fmt.Println(tui.Error(fmt.Sprintf("  Error parsing %s: %s", fe.Path, reason)))
	}
	if res.ChunksAdded > 0 {
		fmt.Println(tui.Success(fmt.Sprintf("Successfully indexed %d code chunks!", res.ChunksAdded)))
	}
}
