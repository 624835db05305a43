package gen

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/luma/disq/internal/meta"
)

var manDir string

var ManPagesCmd = &cobra.Command{
	Use:   "man",
	Short: "Generate man pages",
	Long: `Generate one man page per disq command (disq-addjob.1, disq-qscan.1, ...)
in section 1. By default the pages are written to the "man" directory.`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := outputDir(cmd, manDir)
		if err != nil {
			return err
		}

		header := &doc.GenManHeader{
			Section: "1",
			Manual:  "disq Manual",
			Source:  fmt.Sprintf("disq %s", meta.Version),
		}

		root := cmd.Root()
		root.DisableAutoGenTag = true

		if err := doc.GenManTree(root, header, dir); err != nil {
			return fmt.Errorf("Failed to generate man pages in %s: %w", dir, err)
		}

		fmt.Fprintln(cmd.ErrOrStderr(), "Man pages written to", dir)
		return nil
	},
}

func init() {
	dirFlag(ManPagesCmd, &manDir, "man")
}
