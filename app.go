package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/modelpath-dev/TuroAISTT/internal/audio"
	"github.com/modelpath-dev/TuroAISTT/internal/bootstrap"
	"github.com/modelpath-dev/TuroAISTT/internal/config"
	"github.com/modelpath-dev/TuroAISTT/internal/domain"
	"github.com/modelpath-dev/TuroAISTT/internal/usecase"
)

const (
	eventSnapshot = "turo:snapshot"
	eventError    = "turo:error"
)

var audioDialogFilters = []runtime.FileFilter{
	{
		DisplayName: "Audio files",
		Pattern:     "*.wav;*.mp3;*.m4a;*.aac;*.ogg;*.opus;*.flac;*.webm",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App is the Wails application root.
type App struct {
	ctx context.Context

	mu         sync.Mutex
	controller *usecase.StepController
	capture    *audio.CaptureManager
	cfg        config.Config
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, wailsOpener{}, config.Overrides{})
	if err != nil {
		a.mu.Lock()
		a.bootErr = err
		a.mu.Unlock()
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.mu.Lock()
	a.cfg = services.Config
	a.controller = services.Controller
	a.capture = services.Capture
	a.mu.Unlock()

	a.SnapshotChanged(services.Controller.Snapshot())
	go func() {
		// Failures are reported through the error event.
		_ = services.Controller.LoadTemplates(ctx)
	}()
}

func (a *App) shutdown() {
	a.mu.Lock()
	capture := a.capture
	a.mu.Unlock()
	if capture != nil {
		capture.Abort()
	}
}

// GetSnapshot returns the current workflow state.
func (a *App) GetSnapshot() (domain.Snapshot, error) {
	controller, err := a.requireReady()
	if err != nil {
		return domain.Snapshot{}, err
	}
	return controller.Snapshot(), nil
}

// LoadTemplates refreshes the template catalog.
func (a *App) LoadTemplates() error {
	controller, err := a.requireReady()
	if err != nil {
		return err
	}
	return controller.LoadTemplates(a.ctx)
}

func (a *App) SelectTemplate(templateID string) error {
	controller, err := a.requireReady()
	if err != nil {
		return err
	}
	return controller.SelectTemplate(templateID)
}

func (a *App) SetCaptureMode(mode string) error {
	controller, err := a.requireReady()
	if err != nil {
		return err
	}
	return controller.SetCaptureMode(domain.CaptureMode(mode))
}

// ChooseAudioFile shows the native file dialog and selects the chosen file.
// It reports false when the dialog was dismissed.
func (a *App) ChooseAudioFile() (bool, error) {
	controller, err := a.requireReady()
	if err != nil {
		return false, err
	}
	path, err := runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title:   "Select dictation audio",
		Filters: audioDialogFilters,
	})
	if err != nil {
		return false, fmt.Errorf("open file dialog: %w", err)
	}
	if path == "" {
		return false, nil
	}
	if err := controller.SelectAudioFile(path); err != nil {
		return false, err
	}
	return true, nil
}

func (a *App) SelectAudioFile(path string) error {
	controller, err := a.requireReady()
	if err != nil {
		return err
	}
	return controller.SelectAudioFile(path)
}

func (a *App) StartRecording() error {
	controller, err := a.requireReady()
	if err != nil {
		return err
	}
	return controller.StartRecording(a.ctx)
}

func (a *App) StopRecording() error {
	controller, err := a.requireReady()
	if err != nil {
		return err
	}
	if err := controller.StopRecording(); err != nil && !errors.Is(err, usecase.ErrNoRecording) {
		return err
	}
	return nil
}

// SubmitIntake runs transcription and extraction for the intake.
func (a *App) SubmitIntake() error {
	controller, err := a.requireReady()
	if err != nil {
		return err
	}
	return controller.SubmitIntake(a.ctx)
}

func (a *App) EditTranscript(text string) error {
	controller, err := a.requireReady()
	if err != nil {
		return err
	}
	return controller.EditTranscript(text)
}

func (a *App) ConfirmTranscript() error {
	controller, err := a.requireReady()
	if err != nil {
		return err
	}
	return controller.ConfirmTranscript()
}

func (a *App) BackToIntake() error {
	controller, err := a.requireReady()
	if err != nil {
		return err
	}
	return controller.BackToIntake()
}

func (a *App) BackToTranscription() error {
	controller, err := a.requireReady()
	if err != nil {
		return err
	}
	return controller.BackToTranscription()
}

func (a *App) SetField(fieldID string, value string) error {
	controller, err := a.requireReady()
	if err != nil {
		return err
	}
	return controller.SetField(fieldID, value)
}

// ApproveExtraction generates the final report.
func (a *App) ApproveExtraction() error {
	controller, err := a.requireReady()
	if err != nil {
		return err
	}
	return controller.ApproveExtraction(a.ctx)
}

func (a *App) SendChat(message string) (bool, error) {
	controller, err := a.requireReady()
	if err != nil {
		return false, err
	}
	return controller.SendChat(a.ctx, message)
}

func (a *App) OpenDownload() error {
	controller, err := a.requireReady()
	if err != nil {
		return err
	}
	return controller.OpenDownload(a.ctx)
}

func (a *App) Restart() error {
	controller, err := a.requireReady()
	if err != nil {
		return err
	}
	controller.Restart()
	return nil
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"backend":          a.cfg.Backend.BaseURL,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"recorder":         a.cfg.Audio.RecorderCommand,
	}
}

func (a *App) requireReady() (*usecase.StepController, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bootErr != nil {
		return nil, a.bootErr
	}
	if a.controller == nil {
		return nil, fmt.Errorf("application is not initialized")
	}
	return a.controller, nil
}

// SnapshotChanged pushes workflow state to the frontend.
func (a *App) SnapshotChanged(snapshot domain.Snapshot) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSnapshot, map[string]any{
		"snapshot": snapshot,
		"message":  stepMessage(snapshot),
	})
}

// SessionError emits user-facing failures to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func stepMessage(snapshot domain.Snapshot) string {
	if snapshot.Loading {
		switch snapshot.Step {
		case domain.StepIntake:
			return "Processing with AI..."
		case domain.StepVerification:
			return "Generating report..."
		}
	}
	if snapshot.Recording != nil {
		return fmt.Sprintf("Recording %s", formatElapsed(snapshot.Recording.ElapsedSeconds))
	}
	switch snapshot.Step {
	case domain.StepIntake:
		return "Select a template and provide the dictation audio"
	case domain.StepTranscription:
		return "Review the transcript"
	case domain.StepVerification:
		return "Verify the extracted fields"
	case domain.StepReport:
		return "Report ready"
	default:
		return ""
	}
}

func formatElapsed(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodePermission:
		return "Microphone unavailable"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioFile:
		return "Audio file issue"
	case domain.ErrorCodeIntake:
		return "Transcription failed"
	case domain.ErrorCodeReport:
		return "Report generation failed"
	case domain.ErrorCodeTemplates:
		return "Templates unavailable"
	case domain.ErrorCodeDownload:
		return "Download failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

type wailsOpener struct{}

func (wailsOpener) OpenURL(ctx context.Context, url string) error {
	if ctx == nil {
		return errors.New("no runtime context")
	}
	log.Debug().Str("url", url).Msg("opening download in browser")
	runtime.BrowserOpenURL(ctx, url)
	return nil
}
