package usecase

import (
	"errors"

	"github.com/modelpath-dev/TuroAISTT/internal/domain"
)

var (
	ErrBusy              = errors.New("a stage request is already in flight")
	ErrInvalidTransition = errors.New("invalid step transition")
	ErrWrongStep         = errors.New("action not available in the current step")
	ErrUnknownTemplate   = errors.New("template is not in the catalog")
	ErrNoRecording       = errors.New("no active recording")
	// ErrSuperseded is returned by a stage call whose session was restarted
	// or rolled back while the request was in flight. Its result is discarded.
	ErrSuperseded = errors.New("session changed while the request was in flight")
)

// User-facing notices. Backend detail goes to the log only.
const (
	noticeTemplates  = "Could not load templates. Make sure backend is running."
	noticeIntake     = "Error processing audio. Make sure backend is running."
	noticeReport     = "Error generating report. Make sure backend is running."
	noticePermission = "Microphone access denied or not available."
	noticeAudioStop  = "Recording could not be finalized."
	noticeAudioLost  = "Recording stopped unexpectedly. Please record again."
	noticeAudioFile  = "The selected audio file could not be read."
	noticeDownload   = "Could not open the report download."
)

func isValidTransition(from, to domain.Step) bool {
	switch from {
	case domain.StepIntake:
		return to == domain.StepTranscription
	case domain.StepTranscription:
		return to == domain.StepVerification || to == domain.StepIntake
	case domain.StepVerification:
		return to == domain.StepReport || to == domain.StepTranscription
	case domain.StepReport:
		return false
	default:
		return false
	}
}

func cloneSession(s domain.Session) domain.Session {
	out := s
	if s.Segments != nil {
		out.Segments = append([]domain.Segment(nil), s.Segments...)
	}
	return out
}
