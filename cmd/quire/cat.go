package main

import (
	"fmt"
	"strconv"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/quirelabs/quire/internal/document"
	"github.com/quirelabs/quire/internal/notebook"
)

var flagCatClipboard bool

var catCmd = &cobra.Command{
	Use:   "cat <notebook> <cell>",
	Short: "Print one cell's content by its document-order index (1-based)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := notebook.FileLoader{}.Load(args[0])
		if err != nil {
			return err
		}
		idx, err := strconv.Atoi(args[1])
		if err != nil || idx < 1 {
			return fmt.Errorf("cell index must be a positive number, got %q", args[1])
		}
		var target *document.Cell
		n := 0
		tree.Walk(func(c *document.Cell, _ int) bool {
			n++
			if n == idx {
				target = c
				return false
			}
			return true
		})
		if target == nil {
			return fmt.Errorf("notebook has %d cells, no cell %d", n, idx)
		}
		if flagCatClipboard {
			if err := clipboard.WriteAll(target.Content); err != nil {
				return fmt.Errorf("copy to clipboard: %w", err)
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), target.Content)
		return nil
	},
}

func init() {
	catCmd.Flags().BoolVar(&flagCatClipboard, "clipboard", false, "also copy the content to the system clipboard")
	rootCmd.AddCommand(catCmd)
}
