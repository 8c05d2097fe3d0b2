package main

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/modelpath-dev/TuroAISTT/internal/bootstrap"
	"github.com/modelpath-dev/TuroAISTT/internal/logging"
	"github.com/modelpath-dev/TuroAISTT/internal/tui"
)

var logFileFlag string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Run the interactive terminal workflow",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge := tui.NewEventBridge()
		services, err := bootstrap.Build(bridge, nil, overrides())
		if err != nil {
			return err
		}

		// Logs would draw over the alternate screen.
		var logOut io.Writer = io.Discard
		if logFileFlag != "" {
			file, err := os.OpenFile(logFileFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer file.Close()
			logOut = file
		}
		logging.InitWriter(logOut, services.Config.Log.Level, services.Config.Log.JSON)

		model := tui.New(cmd.Context(), services.Controller, bridge, tui.ZenityPicker{})
		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		_, err = program.Run()
		services.Capture.Abort()
		return err
	},
}

func init() {
	tuiCmd.Flags().StringVar(&logFileFlag, "log-file", "", "Write logs to this file while the UI runs")
}
