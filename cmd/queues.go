package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/luma/disq/client"
	"github.com/luma/disq/command"
)

func queueCommands() []*cobra.Command {
	return []*cobra.Command{
		qlenCmd(),
		qpeekCmd(),
		qstatCmd(),
		qscanCmd(),
		jscanCmd(),
		pauseCmd(),
	}
}

func qlenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "qlen QUEUE",
		Short: "Print the number of jobs queued",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *client.Client) error {
				n, err := c.QLen(args[0])
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			})
		},
	}
}

func qpeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "qpeek QUEUE COUNT",
		Short: "Print queued jobs without consuming them, newest first when COUNT is negative",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid count '%s'", args[1])
			}

			return withClient(cmd, func(c *client.Client) error {
				jobs, err := c.QPeek(args[0], count)
				if err != nil {
					return err
				}

				for _, job := range jobs {
					if err := printJSON(cmd, job); err != nil {
						return err
					}
				}

				return nil
			})
		},
	}
}

func qstatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "qstat QUEUE",
		Short: "Print the state of a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *client.Client) error {
				stat, err := c.QStat(args[0])
				if err != nil {
					return err
				}

				if stat == nil {
					return fmt.Errorf("queue %s not found", args[0])
				}

				return printJSON(cmd, stat.Map())
			})
		},
	}
}

func qscanCmd() *cobra.Command {
	var (
		count          int
		minLen, maxLen int
		busyloop       bool
	)

	cmd := &cobra.Command{
		Use:   "qscan",
		Short: "List queues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := command.Options{"count": count}
			if minLen > 0 {
				opts["minlen"] = minLen
			}
			if maxLen > 0 {
				opts["maxlen"] = maxLen
			}
			if busyloop {
				opts["busyloop"] = true
			}

			return withClient(cmd, func(c *client.Client) error {
				return c.ScanQueues(opts, func(queue string) error {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), queue)
					return err
				})
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&count, "count", 100, "Queues to fetch per call")
	flags.IntVar(&minLen, "minlen", 0, "Only list queues with at least this many jobs")
	flags.IntVar(&maxLen, "maxlen", 0, "Only list queues with at most this many jobs")
	flags.BoolVar(&busyloop, "busyloop", false, "Scan everything in a single call")

	return cmd
}

func jscanCmd() *cobra.Command {
	var (
		count   int
		queue   string
		states  []string
		details bool
	)

	cmd := &cobra.Command{
		Use:   "jscan",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := command.Options{"count": count}
			if queue != "" {
				opts["queue"] = queue
			}
			if len(states) > 0 {
				opts["state"] = states
			}
			if details {
				opts["reply"] = "all"
			}

			return withClient(cmd, func(c *client.Client) error {
				return c.ScanJobs(opts, func(id string, kv command.KeyValues) error {
					if kv != nil {
						return printJSON(cmd, kv.Map())
					}

					_, err := fmt.Fprintln(cmd.OutOrStdout(), id)
					return err
				})
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&count, "count", 100, "Jobs to fetch per call")
	flags.StringVar(&queue, "queue", "", "Only list the jobs of this queue")
	flags.StringSliceVar(&states, "state", nil, "Only list jobs in these states")
	flags.BoolVar(&details, "details", false, "Print the state of each job")

	return cmd
}

func pauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause QUEUE MODE",
		Short: "Pause a queue, MODE is one of " + strings.Join(command.PauseModes, ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *client.Client) error {
				state, err := c.Pause(args[0], args[1])
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), state)
				return err
			})
		},
	}
}
