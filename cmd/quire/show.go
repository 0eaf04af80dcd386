package main

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
	"github.com/spf13/cobra"

	"github.com/quirelabs/quire/internal/action"
	"github.com/quirelabs/quire/internal/document"
	"github.com/quirelabs/quire/internal/executor"
	"github.com/quirelabs/quire/internal/notebook"
	"github.com/quirelabs/quire/internal/notify"
)

var flagShowWidth int

var showCmd = &cobra.Command{
	Use:   "show <notebook>",
	Short: "Print the cell tree of a notebook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree := document.NewTree()
		ex := executor.New(action.Env{
			Doc:    tree,
			UI:     notify.Discard,
			Loader: notebook.FileLoader{},
		}, cfg.History.MaxEntries)
		if err := ex.Perform(action.NewOpen(args[0])); err != nil {
			return err
		}
		printTree(cmd, tree)
		return nil
	},
}

func init() {
	showCmd.Flags().IntVar(&flagShowWidth, "width", 60, "content preview width in grapheme clusters")
	rootCmd.AddCommand(showCmd)
}

func printTree(cmd *cobra.Command, tree *document.Tree) {
	tree.Walk(func(c *document.Cell, depth int) bool {
		status := ""
		if c.Running {
			status = " *"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s[%s]%s %s\n",
			strings.Repeat("  ", depth), c.Type, status, preview(c.Content, flagShowWidth))
		return true
	})
}

// preview flattens content to one line and truncates it to max grapheme
// clusters, so multi-rune clusters are never cut in half.
func preview(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	n := 0
	for g.Next() {
		if n == max {
			b.WriteString("…")
			break
		}
		b.WriteString(g.Str())
		n++
	}
	return b.String()
}
