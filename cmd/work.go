package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/disq/client"
	"github.com/luma/disq/internal/env"
	"github.com/luma/disq/marshal"
	"github.com/luma/disq/worker"
)

var (
	// YAML worker file
	workerFile string

	// Queues to work on, overrides the worker file
	workQueues []string

	// The address to serve /ping and /stats on
	httpAddr string

	workCount     int
	workTimeout   time.Duration
	workMarshaler string
)

func init() {
	flags := WorkCmd.Flags()

	flags.StringVarP(&workerFile, "config", "f", "", "The YAML worker file")
	flags.StringSliceVarP(&workQueues, "queue", "q", nil, "The queues to work on")
	flags.StringVar(&httpAddr, "http", "", "The address to serve health checks on, none when empty")
	flags.IntVar(&workCount, "count", 1, "How many jobs to fetch at once")
	flags.DurationVar(&workTimeout, "timeout", worker.DefaultTimeout, "How long each fetch waits for jobs")
	flags.StringVar(&workMarshaler, "marshaler", "json", "How job bodies are encoded: json or cbor")
}

var WorkCmd = &cobra.Command{
	Use:   "work",
	Short: "Work on jobs, printing each one",
	Long: `Work on jobs, printing each one as a line of JSON

Jobs are acknowledged once printed. Settings come from the worker file, then
the environment, then flags.

Usage
	disq work --config worker.yaml
	disq work --queue emails --http 127.0.0.1:7710

`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(background(cmd), os.Interrupt)
		defer signalStop()

		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		file := &env.WorkerFile{}
		if workerFile != "" {
			if file, err = env.LoadWorkerFile(workerFile); err != nil {
				return err
			}
			conf.ApplyWorkerFile(file)
		}

		options, err := workerOptions(cmd, file)
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
		defer c.Close()

		options.Log = log.Named("worker")

		w, err := worker.New(c, func(ctx context.Context, job *client.Job) error {
			return printJSON(cmd, job)
		}, options)
		if err != nil {
			return err
		}

		var s *http.Server
		if addr := pick(cmd, "http", httpAddr, file.HTTP); addr != "" {
			s = &http.Server{
				Addr:    addr,
				Handler: worker.NewRouter(w.Stats(), conf.DebugHTTP, log.Named("http")),
			}

			// Initializing the server in a goroutine so that
			// it won't block the graceful shutdown handling below
			go func() {
				if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("Http server errored", zap.Error(err))
				}
			}()

			log.Info("Serving health checks", zap.String("addr", addr))
		}

		if err := w.Run(ctx); err != nil {
			return err
		}

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully")

		if s != nil {
			// The context is used to inform the server it has 5 seconds to finish
			// the request it is currently handling
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			s.SetKeepAlivesEnabled(false)

			if err := s.Shutdown(shutdownCtx); err != nil {
				log.Error("Http server forced to shutdown", zap.Error(err))
			}
		}

		log.Info("Exiting", zap.Any("stats", w.Stats().Snapshot()))
		return nil
	},
}

// workerOptions merges the worker file with the flags that were set.
func workerOptions(cmd *cobra.Command, file *env.WorkerFile) (worker.Options, error) {
	flags := cmd.Flags()

	options := worker.Options{
		Queues:     file.Queues,
		Count:      file.Count,
		Timeout:    file.Timeout,
		KeepFailed: !file.NacksOnError(),
	}

	if flags.Changed("queue") || len(options.Queues) == 0 {
		options.Queues = workQueues
	}
	if flags.Changed("count") || options.Count == 0 {
		options.Count = workCount
	}
	if flags.Changed("timeout") || options.Timeout == 0 {
		options.Timeout = workTimeout
	}

	m, err := marshal.ByName(pick(cmd, "marshaler", workMarshaler, file.Marshaler))
	if err != nil {
		return worker.Options{}, err
	}
	options.Marshaler = m

	return options, nil
}

// pick returns the flag value when the flag was set or the file left it
// empty, the file value otherwise.
func pick(cmd *cobra.Command, flag, flagValue, fileValue string) string {
	if cmd.Flags().Changed(flag) || fileValue == "" {
		return flagValue
	}

	return fileValue
}
