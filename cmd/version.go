package cmd

import (
	"github.com/spf13/cobra"

	"github.com/luma/disq/internal/meta"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of disq",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, meta.GetInfo())
	},
}
