package gen

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RootCmd groups the generators of documentation derived from the command
// tree.
var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate documentation for disq",
	Long: `Generate documentation for every disq command, from the flags and help
texts of the command tree.`,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd, MarkdownCmd)
}

// outputDir makes sure dir exists and returns it.
func outputDir(cmd *cobra.Command, dir string) (string, error) {
	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}

		fmt.Fprintln(cmd.ErrOrStderr(), "Directory", dir, "does not exist, creating...")
		if err := os.MkdirAll(dir, 0750); err != nil {
			return "", err
		}
	}

	return dir, nil
}

func dirFlag(cmd *cobra.Command, dir *string, value string) {
	flags := cmd.Flags()

	flags.StringVar(dir, "dir", value, "the directory to write to")

	// For bash-completion
	if err := flags.SetAnnotation("dir", cobra.BashCompSubdirsInDir, []string{}); err != nil {
		panic(err)
	}
}
