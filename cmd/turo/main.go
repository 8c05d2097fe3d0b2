package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/modelpath-dev/TuroAISTT/internal/config"
)

// Global flags
var (
	apiURLFlag      string
	logLevelFlag    string
	inputDeviceFlag string
)

// rootCmd is the main Cobra command for the turo CLI.
var rootCmd = &cobra.Command{
	Use:   "turo",
	Short: "Clinical dictation client - transcribe, verify and report",
	Long: `Turo drives a dictation through four stages: intake, transcription,
verification and report. Audio comes from a file or the microphone and is
processed by the Turo backend.

Examples:
  turo templates
  turo process --template chest_xray --audio dictation.wav --out report.docx
  turo process -t chest_xray --record 30s --field lung_status=clear
  turo ask -t chest_xray --transcript-file notes.txt "Is the heart size normal?"
  turo tui`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "", "Backend base URL (overrides TURO_API_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn or error (overrides TURO_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&inputDeviceFlag, "input-device", "", "Recording input device (overrides TURO_AUDIO_INPUT_DEVICE)")

	rootCmd.AddCommand(templatesCmd, processCmd, askCmd, tuiCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func overrides() config.Overrides {
	return config.Overrides{
		BaseURL:     apiURLFlag,
		InputDevice: inputDeviceFlag,
		LogLevel:    logLevelFlag,
	}
}
