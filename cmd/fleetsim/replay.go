package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fleetsim/internal/sim"
	"fleetsim/internal/store"
)

var (
	replayDBPath  string
	replayInput   string
	replayAgentID string
	replayHours   int
	replaySpeed   float64
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay stored telemetry for one agent",
	Long:  "replay prints an agent's recorded trajectory to STDOUT, either from the SQLite store or a JSONL export.",
	RunE: func(cmd *cobra.Command, args []string) error {
		writer := sim.NewStdoutWriter()

		if replayInput != "" {
			return sim.ReplayLogFile(replayInput, writer, replaySpeed)
		}

		if replayAgentID == "" {
			return fmt.Errorf("either --agent or --input is required")
		}
		st, err := store.Open(replayDBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		since := time.Now().UTC().Add(-time.Duration(replayHours) * time.Hour)
		samples, err := st.Trajectory(replayAgentID, since)
		if err != nil {
			return err
		}
		return sim.ReplaySamples(samples, writer, replaySpeed)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayDBPath, "db", "fleetsim.db", "Path to the SQLite store")
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to a JSONL sample export (bypasses the store)")
	replayCmd.Flags().StringVar(&replayAgentID, "agent", "", "Agent ID to replay")
	replayCmd.Flags().IntVar(&replayHours, "hours", 1, "How many hours back to replay")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
}
