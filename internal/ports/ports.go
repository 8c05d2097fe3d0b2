package ports

import (
	"context"
	"io"

	"github.com/modelpath-dev/TuroAISTT/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// MicrophoneStream is an open microphone producing encoded audio.
type MicrophoneStream interface {
	io.ReadCloser
	Stop() error
}

// Microphone opens exclusive capture streams on the input device.
type Microphone interface {
	Open(ctx context.Context, cfg AudioConfig) (MicrophoneStream, error)
}

// AudioCapture acquires the intake audio from a file or a live recording.
type AudioCapture interface {
	Mode() domain.CaptureMode
	SetMode(mode domain.CaptureMode) error
	SelectFile(path string) (domain.AudioPayload, error)
	Start(ctx context.Context) error
	Stop() (domain.AudioPayload, bool, error)
	Abort()
	Recording() (domain.RecordingState, bool)
	SetListener(fn func(state domain.RecordingState, active bool))
}

// Pipeline is the backend contract the workflow depends on.
type Pipeline interface {
	ListTemplates(ctx context.Context) ([]domain.TemplateSummary, error)
	Transcribe(ctx context.Context, audio domain.AudioPayload, templateID string) (domain.TranscribeResult, error)
	FetchTemplateSchema(ctx context.Context, templateID string) (domain.TemplateSchema, error)
	GenerateReport(ctx context.Context, data map[string]string, templateID string) (domain.ReportResult, error)
	Chat(ctx context.Context, req domain.ChatRequest) (string, error)
}

// ChatBackend answers sidecar chat turns.
type ChatBackend interface {
	Chat(ctx context.Context, req domain.ChatRequest) (string, error)
}

// URLOpener opens a URL in a new browsing context.
type URLOpener interface {
	OpenURL(ctx context.Context, url string) error
}

// EventSink emits controller state to the presentation layer.
type EventSink interface {
	SnapshotChanged(snapshot domain.Snapshot)
	SessionError(code domain.ErrorCode, detail string)
}
