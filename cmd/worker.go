package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sells-group/lens-cli/internal/scheduler"
	"github.com/sells-group/lens-cli/internal/task"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Temporal worker and the synthesis scheduler",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "worker")
		if err != nil {
			return err
		}
		defer env.Close()

		tc, err := dialTemporal()
		if err != nil {
			return err
		}
		defer tc.Close()

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		w := task.NewWorker(tc, cfg.Temporal.TaskQueue, concurrency,
			&task.Workflows{
				Retry:       task.RetryPolicy(retryPolicy()),
				MaxInFlight: cfg.Lens.MaxInFlight,
			},
			&task.Activities{
				Analyzer:         env.Analyzer,
				Lenses:           env.Applicator,
				Synthesizer:      env.Synthesizer,
				Settings:         env.Store,
				PlatformDefaults: cfg.Lens.PlatformDefaults,
			},
		)
		if err := w.Start(); err != nil {
			return eris.Wrap(err, "start worker")
		}
		defer w.Stop()

		noSchedule, _ := cmd.Flags().GetBool("no-schedule")
		if !noSchedule && cfg.Scheduler.SynthesisCron != "" {
			job := scheduler.NewSweepJob(env.Store, env.Synthesizer)
			job.Timeout = 10 * time.Minute
			sched, err := scheduler.New(cfg.Scheduler.SynthesisCron, job)
			if err != nil {
				return err
			}
			sched.Start()
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := sched.Stop(stopCtx); err != nil {
					zap.L().Warn("scheduler did not stop cleanly", zap.Error(err))
				}
			}()
		}

		zap.L().Info("worker started",
			zap.String("task_queue", cfg.Temporal.TaskQueue),
			zap.String("namespace", cfg.Temporal.Namespace),
			zap.Int("concurrency", concurrency),
		)
		<-ctx.Done()
		zap.L().Info("shutting down worker")
		return nil
	},
}

// dialTemporal connects to the configured Temporal frontend.
func dialTemporal() (client.Client, error) {
	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    task.NewZapLogger(zap.L().Named("temporal")),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "dial temporal %s", cfg.Temporal.HostPort)
	}
	return tc, nil
}

func init() {
	workerCmd.Flags().Int("concurrency", 4, "max concurrent activity executions")
	workerCmd.Flags().Bool("no-schedule", false, "do not run the synthesis sweep in this process")
	rootCmd.AddCommand(workerCmd)
}
