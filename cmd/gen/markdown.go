package gen

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

var markdownDir string

var MarkdownCmd = &cobra.Command{
	Use:   "markdown",
	Short: "Generate markdown reference pages",
	Long: `Generate one markdown page per disq command (disq_addjob.md, ...), linked
to each other, for publishing the command reference.`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := outputDir(cmd, markdownDir)
		if err != nil {
			return err
		}

		root := cmd.Root()
		root.DisableAutoGenTag = true

		if err := doc.GenMarkdownTree(root, dir); err != nil {
			return fmt.Errorf("Failed to generate markdown in %s: %w", dir, err)
		}

		fmt.Fprintln(cmd.ErrOrStderr(), "Markdown written to", dir)
		return nil
	},
}

func init() {
	dirFlag(MarkdownCmd, &markdownDir, "docs")
}
