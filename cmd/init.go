package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"coderag/internal/config"
	"coderag/internal/tui"

	"github.com/spf13/cobra"
)

var (
	flagInitJSON      bool
	flagInitOverwrite bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file to the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		name := config.FileTOML
		if flagInitJSON {
			name = config.FileJSON
		}
		path := filepath.Join(wd, name)

		if _, err := os.Stat(path); err == nil && !flagInitOverwrite {
			return fmt.Errorf("%s already exists (use --force to overwrite)", name)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		if err := config.Save(config.Default(), path); err != nil {
			return err
		}
		fmt.Println(tui.Success("Created " + name + " config file"))
		fmt.Println("Edit this file to customize file patterns and ignore rules")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&flagInitJSON, "json", false, "write .coderag.json instead of .coderag.toml")
	initCmd.Flags().BoolVar(&flagInitOverwrite, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
