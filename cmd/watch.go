package cmd

import (
	"context"
	"errors"
	"time"

	"coderag/internal/index"
	"coderag/internal/watch"

	"github.com/spf13/cobra"
)

var flagDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Index a codebase, then re-index whenever its files change",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		root, err := projectRoot(args)
		if err != nil {
			return err
		}

		st, err := openStore(root, true)
		if err != nil {
			return err
		}
		defer st.Close()

		emb, err := newEmbedder(ctx)
		if err != nil {
			return err
		}
		coord := newCoordinator(root, st, emb)

		reindex := func(ctx context.Context) error {
			start := time.Now()
			res, err := coord.Run(ctx, root, index.Options{})
			if errors.Is(err, index.ErrNoFiles) {
				logger.Info("nothing to index yet", "root", root)
				return nil
			}
			if err != nil {
				return err
			}
			if res.FilesProcessed > 0 || res.FilesRemoved > 0 {
				printResult(res, time.Since(start))
			}
			return nil
		}
		if err := reindex(ctx); err != nil {
			return err
		}

		w, err := watch.New(root, scanOptions(), flagDebounce, logger)
		if err != nil {
			return err
		}
		return w.Run(ctx, reindex)
	},
}

func init() {
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", watch.DefaultDebounce, "quiet period before re-indexing")
	rootCmd.AddCommand(watchCmd)
}
