package main

import (
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Ingest on a schedule until interrupted",
	Long:  "Runs ingest on the configured cron schedule, then fetches and translates whatever the scan discovered.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		c := cron.New()
		_, err = c.AddFunc(cfg.Watch.Schedule, func() {
			inserted, ingestErr := env.Pipeline.Ingest(ctx)
			if ingestErr != nil {
				zap.L().Error("watch: ingest failed", zap.Error(ingestErr))
				return
			}
			if inserted == 0 {
				return
			}
			if _, procErr := env.Pipeline.ProcessPending(ctx); procErr != nil {
				zap.L().Error("watch: processing failed", zap.Error(procErr))
			}
		})
		if err != nil {
			return eris.Wrapf(err, "watch: bad schedule %q", cfg.Watch.Schedule)
		}

		zap.L().Info("watch started", zap.String("schedule", cfg.Watch.Schedule))
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
