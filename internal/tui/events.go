package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/modelpath-dev/TuroAISTT/internal/domain"
)

const eventBuffer = 64

// EventBridge forwards controller events into the bubbletea loop.
type EventBridge struct {
	ch chan tea.Msg
}

func NewEventBridge() *EventBridge {
	return &EventBridge{ch: make(chan tea.Msg, eventBuffer)}
}

// SnapshotChanged never blocks the controller. A snapshot dropped on a full
// buffer is superseded by a later one.
func (b *EventBridge) SnapshotChanged(snapshot domain.Snapshot) {
	select {
	case b.ch <- SnapshotMsg{Snapshot: snapshot}:
	default:
		log.Debug().Uint64("generation", snapshot.Generation).Msg("snapshot dropped, ui is behind")
	}
}

func (b *EventBridge) SessionError(code domain.ErrorCode, notice string) {
	select {
	case b.ch <- SessionErrorMsg{Code: code, Notice: notice}:
	default:
		log.Warn().Str("code", string(code)).Msg("session error dropped, ui is behind")
	}
}

// Next waits for the next controller event.
func (b *EventBridge) Next() tea.Cmd {
	return func() tea.Msg {
		return <-b.ch
	}
}
