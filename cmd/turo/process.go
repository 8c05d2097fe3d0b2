package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/modelpath-dev/TuroAISTT/internal/bootstrap"
	"github.com/modelpath-dev/TuroAISTT/internal/domain"
	"github.com/modelpath-dev/TuroAISTT/internal/usecase"
)

var (
	templateFlag   string
	audioFlag      string
	recordFlag     time.Duration
	fieldFlags     []string
	transcriptFlag string
	outFlag        string
	openFlag       bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run one dictation through transcription, verification and report",
	Long: `Process runs the whole workflow without the interactive UI. The audio
is either an existing file (--audio) or a microphone recording of fixed
length (--record). Extracted fields can be corrected with --field before the
report is generated.`,
	Args: cobra.NoArgs,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&templateFlag, "template", "t", "", "Template id (see 'turo templates')")
	processCmd.Flags().StringVarP(&audioFlag, "audio", "a", "", "Audio file to transcribe")
	processCmd.Flags().DurationVar(&recordFlag, "record", 0, "Record from the microphone for this long instead of reading a file")
	processCmd.Flags().StringArrayVarP(&fieldFlags, "field", "f", nil, "Field correction as id=value; an empty value clears the field")
	processCmd.Flags().StringVar(&transcriptFlag, "transcript", "", "Replace the refined transcript before verification")
	processCmd.Flags().StringVarP(&outFlag, "out", "o", "", "Save the generated report to this path")
	processCmd.Flags().BoolVar(&openFlag, "open", false, "Open the report in the browser")
	_ = processCmd.MarkFlagRequired("template")
	processCmd.MarkFlagsMutuallyExclusive("audio", "record")
	processCmd.MarkFlagsOneRequired("audio", "record")
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	fields, err := parseFieldFlags(fieldFlags)
	if err != nil {
		return err
	}

	services, err := bootstrap.Build(newConsoleSink(cmd.ErrOrStderr()), nil, overrides())
	if err != nil {
		return err
	}
	controller := services.Controller

	if err := controller.LoadTemplates(ctx); err != nil {
		return err
	}
	if err := controller.SelectTemplate(templateFlag); err != nil {
		return err
	}

	if recordFlag > 0 {
		if err := record(ctx, controller, recordFlag); err != nil {
			return err
		}
	} else if err := controller.SelectAudioFile(audioFlag); err != nil {
		return err
	}

	if err := controller.SubmitIntake(ctx); err != nil {
		return err
	}

	snap := controller.Snapshot()
	fmt.Fprintln(out, "Transcript:")
	fmt.Fprintln(out, snap.RefinedTranscript)
	fmt.Fprintln(out)

	if transcriptFlag != "" {
		if err := controller.EditTranscript(transcriptFlag); err != nil {
			return err
		}
	}
	if err := controller.ConfirmTranscript(); err != nil {
		return err
	}

	for _, f := range fields {
		if err := controller.SetField(f.id, f.value); err != nil {
			return fmt.Errorf("field %s: %w", f.id, err)
		}
	}
	printFields(out, controller.Snapshot().Fields)

	if err := controller.ApproveExtraction(ctx); err != nil {
		return err
	}
	downloadURL := controller.Snapshot().DownloadURL
	fmt.Fprintf(out, "\nReport: %s\n", downloadURL)

	if outFlag != "" {
		if err := saveReport(ctx, services, downloadURL, outFlag); err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved to %s\n", outFlag)
	}
	if openFlag {
		if err := controller.OpenDownload(ctx); err != nil {
			return err
		}
	}
	return nil
}

// record captures the microphone for d, or until ctx is cancelled.
func record(ctx context.Context, controller *usecase.StepController, d time.Duration) error {
	if err := controller.SetCaptureMode(domain.CaptureModeLiveRecord); err != nil {
		return err
	}
	if err := controller.StartRecording(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		log.Info().Msg("recording interrupted")
	}

	err := controller.StopRecording()
	if errors.Is(err, usecase.ErrNoRecording) {
		return fmt.Errorf("%w: microphone stream ended before the recording finished", domain.ErrPermission)
	}
	return err
}

func saveReport(ctx context.Context, services bootstrap.Services, downloadURL, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	n, err := services.Pipeline.Download(ctx, downloadURL, file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	log.Info().Str("path", path).Int64("bytes", n).Msg("report saved")
	return nil
}

type fieldEdit struct {
	id    string
	value string
}

func parseFieldFlags(flags []string) ([]fieldEdit, error) {
	edits := make([]fieldEdit, 0, len(flags))
	for _, raw := range flags {
		id, value, ok := strings.Cut(raw, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid --field %q: expected id=value", raw)
		}
		edits = append(edits, fieldEdit{id: id, value: value})
	}
	return edits, nil
}

func printFields(out io.Writer, fields []domain.FieldView) {
	section := ""
	for _, f := range fields {
		if f.Section != section {
			section = f.Section
			fmt.Fprintf(out, "\n[%s]\n", section)
		}
		value := f.Value
		if f.NotDetermined {
			value = domain.NotDeterminedLabel
		} else {
			for _, opt := range f.Options {
				if opt.Value == f.Value {
					value = opt.Label
					break
				}
			}
		}
		fmt.Fprintf(out, "  %s: %s\n", f.Label, value)
	}
}
