package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/Ning0612/dedupwatch/internal/daemon"
	"github.com/Ning0612/dedupwatch/internal/state"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the agent is running and its recent rounds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			cfg := ctx.config

			if pid, running, _ := daemon.NewPIDFile(cfg.GetPIDPath()).Owner(); running {
				fmt.Fprintf(out, "Agent:      running (pid %d)\n", pid)
			} else {
				fmt.Fprintln(out, "Agent:      not running")
			}
			fmt.Fprintf(out, "Watching:   %s\n", cfg.WatchDir)
			fmt.Fprintf(out, "Upload:     %s\n", uploadState(cfg.UploadEnabled(), cfg.Remote.TargetID))

			mgr, err := state.NewManager(cfg.GetStateDir())
			if err != nil {
				return err
			}
			defer mgr.Close()

			totals, err := mgr.Totals()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Lifetime:   %d round(s), %d file(s) matched, %s freed\n",
				totals.Rounds, totals.Matched, humanize.IBytes(uint64(totals.BytesFreed)))

			if totals.Rounds == 0 {
				return nil
			}
			history, err := mgr.History(limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			renderHistory(out, history)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Number of recent rounds to show")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask the running agent to shut down",
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := daemon.NewPIDFile(ctx.config.GetPIDPath()).Signal()
			if errors.Is(err, daemon.ErrNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "Agent is not running")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Stop signal sent")
			return nil
		},
	}
}

func uploadState(enabled bool, target int64) string {
	if !enabled {
		return "disabled (no credentials)"
	}
	return fmt.Sprintf("enabled, folder %d", target)
}

// renderHistory prints recent rounds, newest first. Failed rounds carry
// their error in the last column.
func renderHistory(w io.Writer, history []state.RoundRecord) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Started", "Status", "Files", "Matched", "Skipped", "Failed", "Freed", "Error"})

	for _, r := range history {
		skipped := r.NotMatched + r.Unstable + r.Vanished
		tw.AppendRow(table.Row{
			humanize.Time(r.StartTime),
			r.Status,
			r.FilesSeen,
			r.Matched,
			skipped,
			r.Failed,
			humanize.IBytes(uint64(r.BytesFreed)),
			r.Error,
		})
	}

	right := table.ColumnConfig{Align: text.AlignRight, AlignHeader: text.AlignLeft}
	configs := []table.ColumnConfig{{Number: 8, WidthMax: 48}}
	for n := 3; n <= 7; n++ {
		c := right
		c.Number = n
		configs = append(configs, c)
	}
	tw.SetColumnConfigs(configs)
	tw.Render()
}
