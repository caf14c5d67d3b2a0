package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cancelikay/santral/internal/audio"
	"github.com/cancelikay/santral/internal/config"
	"github.com/cancelikay/santral/internal/live"
	"github.com/cancelikay/santral/internal/metrics"
	"github.com/cancelikay/santral/internal/server"
	"github.com/cancelikay/santral/internal/session"
)

func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the agent and the control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			if configPath == "" {
				configPath = os.Getenv(config.EnvPrefix + "CONFIG")
			}

			cfg, warnings, err := config.Load(configPath)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				log.Printf("warning: %s", w)
			}

			return runAgent(cfg, warnings)
		},
	}
	return cmd
}

func runAgent(cfg config.Config, warnings []string) error {
	log.Println("santral: starting")

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	hub := server.NewHub()
	m := metrics.New()
	transport := live.NewClient(cfg.APIKey)

	devices := session.Devices{
		OpenCapture: func(send audio.SendFunc) (session.CaptureSource, error) {
			return audio.NewCapture(send)
		},
		OpenSink: func() (session.PlaybackSink, error) {
			return audio.NewSpeaker()
		},
	}

	ctrl := session.NewController(transport, devices, hub, m, session.Options{
		Model: cfg.Model,
		Caller: session.CallerContext{
			Name:         cfg.CallerName,
			Reason:       cfg.CallReason,
			TrunkContext: cfg.TrunkContext,
			Voice:        cfg.Voice,
		},
		Instructions: cfg.Instructions,
		Debug:        cfg.Debug,
	})
	defer ctrl.Disconnect()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(hub, ctrl, warnings),
	}
	go func() {
		log.Printf("santral: control API on http://%s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("santral: shutting down")
	ctrl.Disconnect()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: http shutdown failed: %v", err)
	}
	return nil
}
