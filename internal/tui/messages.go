package tui

import "github.com/modelpath-dev/TuroAISTT/internal/domain"

// SnapshotMsg carries a published workflow snapshot.
type SnapshotMsg struct {
	Snapshot domain.Snapshot
}

// SessionErrorMsg carries a user-facing failure notice.
type SessionErrorMsg struct {
	Code   domain.ErrorCode
	Notice string
}

// ActionDoneMsg reports the outcome of a controller call run off the UI loop.
type ActionDoneMsg struct {
	Action string
	Err    error
}

// FilePickedMsg carries the path chosen in the file dialog. Path is empty
// when the dialog was dismissed.
type FilePickedMsg struct {
	Path string
	Err  error
}

// ChatSentMsg reports whether a chat message was accepted.
type ChatSentMsg struct {
	Sent bool
	Err  error
}

// ClearErrorMsg clears the error bar after a timeout.
type ClearErrorMsg struct {
	Seq int
}
