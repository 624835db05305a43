package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/luma/disq/client"
	"github.com/luma/disq/command"
	"github.com/luma/disq/marshal"
)

func jobCommands() []*cobra.Command {
	return []*cobra.Command{
		addJobCmd(),
		getJobCmd(),
		jobIDsCmd("ack", "Acknowledge jobs", (*client.Client).AckJob),
		jobIDsCmd("fastack", "Acknowledge jobs without waiting for the cluster", (*client.Client).FastAck),
		jobIDsCmd("nack", "Put jobs back in their queue as failed", (*client.Client).Nack),
		jobIDsCmd("deljob", "Delete jobs", (*client.Client).DelJob),
		jobIDsCmd("enqueue", "Queue jobs that are not queued", (*client.Client).Enqueue),
		jobIDsCmd("dequeue", "Take jobs out of their queue", (*client.Client).Dequeue),
		workingCmd(),
		showCmd(),
	}
}

func addJobCmd() *cobra.Command {
	var (
		fields    []string
		timeout   time.Duration
		replicate int
		delay     time.Duration
		retry     time.Duration
		ttl       time.Duration
		maxLen    int
		async     bool
	)

	cmd := &cobra.Command{
		Use:   "addjob QUEUE [BODY]",
		Short: "Add a job to a queue",
		Long: `Add a job to a queue and print its id.

The body can be built, or amended, with --set path=value. Values that are valid
JSON are stored as is, anything else as a string.

Usage
	disq addjob emails --set to=ann@example.com --set retries=3
`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := ""
			if len(args) == 2 {
				body = args[1]
			}

			body, err := setFields(body, fields)
			if err != nil {
				return err
			}

			opts := command.Options{"timeout": timeout.Milliseconds()}
			flags := cmd.Flags()

			if flags.Changed("replicate") {
				opts["replicate"] = replicate
			}
			if flags.Changed("delay") {
				opts["delay"] = int64(delay.Seconds())
			}
			if flags.Changed("retry") {
				opts["retry"] = int64(retry.Seconds())
			}
			if flags.Changed("ttl") {
				opts["ttl"] = int64(ttl.Seconds())
			}
			if flags.Changed("maxlen") {
				opts["maxlen"] = maxLen
			}
			if async {
				opts["async"] = true
			}

			return withClient(cmd, func(c *client.Client) error {
				id, err := c.AddJob(args[0], body, opts)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
				return err
			})
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&fields, "set", nil, "Set a body field, as path=value")
	flags.DurationVar(&timeout, "timeout", 0, "How long to wait for the job to be replicated")
	flags.IntVar(&replicate, "replicate", 0, "How many nodes to replicate the job to")
	flags.DurationVar(&delay, "delay", 0, "How long to wait before queueing the job")
	flags.DurationVar(&retry, "retry", 0, "How long to wait for an ACK before queueing the job again")
	flags.DurationVar(&ttl, "ttl", 0, "How long the job lives")
	flags.IntVar(&maxLen, "maxlen", 0, "Refuse the job when the queue is this long")
	flags.BoolVar(&async, "async", false, "Replicate the job asynchronously")

	return cmd
}

// setFields applies path=value pairs to a JSON body.
func setFields(body string, fields []string) (string, error) {
	for _, field := range fields {
		path, value, ok := strings.Cut(field, "=")
		if !ok || path == "" {
			return "", fmt.Errorf("invalid field '%s', expected path=value", field)
		}

		var err error
		if body, err = marshal.Set(body, path, value); err != nil {
			return "", fmt.Errorf("failed to set '%s': %w", path, err)
		}
	}

	return body, nil
}

func getJobCmd() *cobra.Command {
	var (
		count        int
		timeout      time.Duration
		nohang       bool
		withCounters bool
		field        string
	)

	cmd := &cobra.Command{
		Use:   "getjob QUEUE...",
		Short: "Fetch jobs from queues",
		Long: `Fetch jobs from queues and print them, one JSON object per line.

With --field only the value at that gjson path of each body is printed.
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := command.Options{"count": count}
			if timeout > 0 {
				opts["timeout"] = timeout.Milliseconds()
			}
			if nohang {
				opts["nohang"] = true
			}
			if withCounters {
				opts["withcounters"] = true
			}

			return withClient(cmd, func(c *client.Client) error {
				jobs, err := c.GetJob(args, opts)
				if err != nil {
					return err
				}

				for _, job := range jobs {
					if field != "" {
						value, _ := marshal.Get(job.Body, field)
						if _, err := fmt.Fprintln(cmd.OutOrStdout(), value.String()); err != nil {
							return err
						}
						continue
					}

					if err := printJSON(cmd, job); err != nil {
						return err
					}
				}

				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&count, "count", "c", 1, "How many jobs to fetch")
	flags.DurationVarP(&timeout, "timeout", "t", 0, "How long to wait for jobs, 0 waits forever")
	flags.BoolVar(&nohang, "nohang", false, "Do not wait for jobs")
	flags.BoolVar(&withCounters, "withcounters", false, "Include the nack and delivery counters")
	flags.StringVarP(&field, "field", "f", "", "Only print this gjson path of each body")

	return cmd
}

func jobIDsCmd(name, short string, fn func(c *client.Client, ids ...string) (int64, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " JOB_ID...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *client.Client) error {
				n, err := fn(c, args...)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			})
		},
	}
}

func workingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "working JOB_ID",
		Short: "Postpone the redelivery of a job being worked on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *client.Client) error {
				seconds, err := c.Working(args[0])
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), time.Duration(seconds)*time.Second)
				return err
			})
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show JOB_ID",
		Short: "Show the state of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *client.Client) error {
				details, err := c.Show(args[0])
				if err != nil {
					return err
				}

				if details == nil {
					return fmt.Errorf("job %s not found", args[0])
				}

				return printJSON(cmd, details.Map())
			})
		},
	}
}
