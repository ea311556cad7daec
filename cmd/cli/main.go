package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/myrjola/whodunit/cmd/cli/img"
	"github.com/myrjola/whodunit/cmd/cli/play"
	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/mystery"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddGroup(img.Group)
	rootCmd.AddCommand(img.Generate)
	rootCmd.AddGroup(play.Group)
	rootCmd.AddCommand(play.Command)
	rootCmd.AddCommand(mysteryCmd)
}

var rootCmd = &cobra.Command{
	Use:  "whodunit-cli",
	Long: `Command line utilities for Whodunit, the murder mystery game.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// The .env file is optional.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrap(err, "load .env")
		}
		return nil
	},
	SilenceUsage: true,
}

var mysteryCmd = &cobra.Command{
	Use:     "mystery",
	GroupID: "game",
	Short:   "Print a random solution",
	Long:    `Draws a killer, weapon and motive the way a new game does and prints them as JSON.`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(mystery.NewGenerator(nil).Generate()); err != nil {
			return errors.Wrap(err, "encode mystery")
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
