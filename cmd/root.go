package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/disq/client"
	"github.com/luma/disq/cmd/gen"
	"github.com/luma/disq/connection"
	"github.com/luma/disq/internal/env"
)

var (
	// Servers to connect to, overrides DISQ_SERVERS
	servers []string

	// Overrides DISQ_PASSWORD
	password string

	// Overrides DISQ_PRIORITIZER
	prioritizer string

	// Overrides DISQ_MIN_JOBS_TO_SWITCH
	minJobsToSwitch int64

	debug bool
)

var RootCmd = &cobra.Command{
	Use:   "disq",
	Short: "A client for the Disque job queue",
	Long: `A client for the Disque job queue

Connection settings come from the environment (DISQ_SERVERS, DISQ_PASSWORD,
DISQ_CONNECT_TIMEOUT, DISQ_RESPONSE_TIMEOUT, DISQ_PRIORITIZER, DISQ_MARGIN,
DISQ_MIN_JOBS_TO_SWITCH, DISQ_DEBUG), and .env.local when there is one.
Flags override the environment.`,
	SilenceUsage: true,
}

func init() {
	flags := RootCmd.PersistentFlags()

	flags.StringSliceVarP(&servers, "servers", "s", nil, "Disque servers to connect to, as host:port")
	flags.StringVar(&password, "password", "", "The password to AUTH with")
	flags.StringVar(&prioritizer, "prioritizer", "", "How to pick nodes: conservative, random or null")
	flags.Int64Var(&minJobsToSwitch, "min-jobs-to-switch", 0, "Jobs to fetch before considering another node, 0 never switches")
	flags.BoolVar(&debug, "debug", false, "Log at debug level")

	RootCmd.AddCommand(gen.RootCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(WorkCmd)
	RootCmd.AddCommand(jobCommands()...)
	RootCmd.AddCommand(queueCommands()...)
	RootCmd.AddCommand(serverCommands()...)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config from the environment and applies the flags
// that were set on top of it.
func loadConfig(cmd *cobra.Command) (*env.Config, error) {
	conf, err := env.LoadConfig(background(cmd))
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("servers") {
		conf.Servers = servers
	}
	if flags.Changed("password") {
		conf.Password = password
	}
	if flags.Changed("prioritizer") {
		conf.Prioritizer = prioritizer
	}
	if flags.Changed("min-jobs-to-switch") {
		conf.MinJobsToSwitch = minJobsToSwitch
	}
	if flags.Changed("debug") {
		conf.Debug = debug
	}

	return conf, nil
}

func dial(conf *env.Config, log *zap.Logger) (*client.Client, error) {
	options, err := conf.ConnectionOptions(log.Named("manager"))
	if err != nil {
		return nil, err
	}

	c := client.New(connection.NewManager(options), log.Named("client"))
	if _, err := c.Connect(); err != nil {
		return nil, err
	}

	return c, nil
}

// withClient runs fn with a connected client.
func withClient(cmd *cobra.Command, fn func(c *client.Client) error) error {
	conf, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := env.MakeLogger(conf.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	c, err := dial(conf, log)
	if err != nil {
		return err
	}

	defer func() {
		if err := c.Close(); err != nil {
			log.Debug("Failed to disconnect", zap.Error(err))
		}
	}()

	return fn(c)
}

// printJSON writes v to stdout as a line of JSON.
func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func background(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}
