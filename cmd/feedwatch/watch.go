package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/feedwatch/feedwatch/internal/app"
	"github.com/feedwatch/feedwatch/internal/client"
	"github.com/feedwatch/feedwatch/internal/log"
	"github.com/feedwatch/feedwatch/internal/stream"
)

func newWatchCmd(root *rootFlags) *cobra.Command {
	var (
		url         string
		autoConnect bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the live feed viewer (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := root.loadConfig()
			if err != nil {
				return err
			}
			if url != "" {
				cfg.Watch.URL = url
			}
			if cmd.Flags().Changed("auto-connect") {
				cfg.Watch.AutoConnect = autoConnect
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config %s: %w", path, err)
			}

			logger, closer, err := log.NewFile(cfg.Log.Level, cfg.Log.File)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer closer.Close()
			logger.Info().Str("config", path).Str("url", cfg.Watch.URL).Msg("starting feedwatch")

			transport := client.New(client.Options{
				Retries:      cfg.Watch.TransportRetries,
				RetryInitial: cfg.Watch.RetryInitial,
				RetryMax:     cfg.Watch.RetryMax,
				Logger:       logger,
			})
			bridge := app.NewBridge()
			ctrl := stream.New(stream.Config{
				URL:             cfg.Watch.URL,
				ReconnectDelay:  cfg.Watch.ReconnectDelay,
				VisibilityDelay: cfg.Watch.VisibilityDelay,
				TickInterval:    cfg.Watch.TickInterval,
				StaleTimeout:    cfg.Watch.StaleTimeout,
			}, transport, bridge, stream.WithLogger(logger))
			defer ctrl.Close()

			m := app.New(ctrl, bridge, app.Options{
				URL:         cfg.Watch.URL,
				AutoConnect: cfg.Watch.AutoConnect,
				MaxMessages: cfg.Watch.MaxMessages,
				Logger:      logger,
			})
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus())
			if _, err := p.Run(); err != nil {
				return err
			}
			logger.Info().Msg("feedwatch stopped")
			return nil
		},
	}
	cmd.Flags().StringVarP(&url, "url", "u", "", "stream URL (http(s) for SSE, ws(s) for WebSocket)")
	cmd.Flags().BoolVar(&autoConnect, "auto-connect", false, "connect as soon as the viewer starts")
	return cmd
}
