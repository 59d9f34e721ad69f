package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ning0612/dedupwatch/internal/daemon"
	"github.com/Ning0612/dedupwatch/internal/logger"
	"github.com/Ning0612/dedupwatch/internal/service"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the agent in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAgent(sigCtx, ctx)
		},
	}
}

func newOnceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single scan round and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runOnce(sigCtx, ctx, cmd)
		},
	}
}

// runAgent loops rounds until ctx is cancelled (nil) or a fatal fault ends
// the loop (error, exit status 1)
func runAgent(ctx context.Context, cc *commandContext) error {
	log := logger.With("component", "main")

	pid := daemon.NewPIDFile(cc.config.GetPIDPath())
	if err := pid.Claim(); err != nil {
		return err
	}
	defer pid.Release()

	svc, err := service.NewDaemonService(cc.config)
	if err != nil {
		log.Error("failed to start agent", "error", err)
		return err
	}
	defer svc.Close()

	if err := svc.Start(ctx); err != nil {
		log.Error("failed to start agent", "error", err)
		return err
	}

	<-svc.Done()

	if err := svc.Err(); err != nil {
		log.Error("agent stopped on fatal error", "error", err)
		return fmt.Errorf("agent stopped: %w", err)
	}

	log.Info("agent stopped by signal")
	return nil
}

func runOnce(ctx context.Context, cc *commandContext, cmd *cobra.Command) error {
	pid := daemon.NewPIDFile(cc.config.GetPIDPath())
	if err := pid.Claim(); err != nil {
		return err
	}
	defer pid.Release()

	svc, err := service.NewDaemonService(cc.config)
	if err != nil {
		return err
	}
	defer svc.Close()

	stats, err := svc.RunOnce(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), service.FormatStats(stats))
	return nil
}
