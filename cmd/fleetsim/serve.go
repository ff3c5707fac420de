package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fleetsim/internal/config"
	"fleetsim/internal/hub"
	"fleetsim/internal/logging"
	"fleetsim/internal/sim"
	"fleetsim/internal/store"
)

var (
	serveConfigPath string
	serveSchemaPath string
	servePrintOnly  bool
	serveLogFile    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the fleet engine and subscription hub",
	Long:  "serve starts the simulation loop, persists telemetry to SQLite, and serves live subscribers over websocket.",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.New()

		cfg, err := config.Load(serveConfigPath, serveSchemaPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(); err != nil {
			return err
		}
		if err := st.SeedZones(cfg.Zones); err != nil {
			return err
		}
		if err := st.ProvisionAgents(cfg.Fleet.NamePrefix, cfg.Fleet.Size, cfg.Fleet.Bands); err != nil {
			return err
		}

		agents, err := st.ListAgents("", "")
		if err != nil {
			return err
		}
		zones, err := st.ListZones()
		if err != nil {
			return err
		}

		samples, cleanup, err := newSampleWriter(st, servePrintOnly, serveLogFile)
		if err != nil {
			return err
		}
		defer cleanup()

		h := hub.New(st, zones, log)
		engine := sim.NewEngine(cfg, agents, zones, samples, st, st, h)

		ctx, cancel := context.WithCancel(logging.NewContext(context.Background(), log))
		defer cancel()

		go func() {
			log.Info("hub listening", "addr", cfg.ListenAddr)
			if err := h.Start(ctx, cfg.ListenAddr); err != nil {
				log.Error("hub server failed", "err", err)
			}
		}()
		go engine.Run(ctx)

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs

		cancel()
		log.Info("fleet simulation stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "config/fleet.yaml", "Path to fleet configuration YAML")
	serveCmd.Flags().StringVar(&serveSchemaPath, "schema", "schemas/fleet.cue", "Path to CUE schema file")
	serveCmd.Flags().BoolVar(&servePrintOnly, "print-only", false, "Also print flushed samples to STDOUT")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "Path to export flushed samples (JSONL)")
}
