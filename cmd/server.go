package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luma/disq/client"
)

func serverCommands() []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "hello",
			Short: "Print the nodes of the cluster",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withClient(cmd, func(c *client.Client) error {
					hello, err := c.Hello()
					if err != nil {
						return err
					}

					return printJSON(cmd, hello)
				})
			},
		},
		{
			Use:   "info",
			Short: "Print the server info",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withClient(cmd, func(c *client.Client) error {
					info, err := c.Info()
					if err != nil {
						return err
					}

					_, err = fmt.Fprint(cmd.OutOrStdout(), info)
					return err
				})
			},
		},
	}
}
