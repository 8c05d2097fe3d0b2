// Package tui is a terminal front end for the dictation workflow.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/modelpath-dev/TuroAISTT/internal/domain"
	"github.com/modelpath-dev/TuroAISTT/internal/usecase"
)

// Workflow is the part of the step controller the TUI drives.
type Workflow interface {
	Snapshot() domain.Snapshot
	LoadTemplates(ctx context.Context) error
	SelectTemplate(templateID string) error
	SetCaptureMode(mode domain.CaptureMode) error
	SelectAudioFile(path string) error
	StartRecording(ctx context.Context) error
	StopRecording() error
	SubmitIntake(ctx context.Context) error
	EditTranscript(text string) error
	ConfirmTranscript() error
	BackToIntake() error
	BackToTranscription() error
	SetField(fieldID string, value string) error
	ApproveExtraction(ctx context.Context) error
	OpenDownload(ctx context.Context) error
	SendChat(ctx context.Context, message string) (bool, error)
	Restart()
}

// Focus tracks which panel receives typed keys.
type Focus int

const (
	FocusMain Focus = iota
	FocusChat
)

type editTarget int

const (
	editNone editTarget = iota
	editTranscript
	editField
)

const errorDisplayTime = 6 * time.Second

// Model is the root bubbletea model.
type Model struct {
	ctx      context.Context
	workflow Workflow
	events   *EventBridge
	picker   FilePicker

	snapshot domain.Snapshot

	// UI state
	focus     Focus
	cursor    int
	editing   editTarget
	input     []rune
	chatInput []rune
	width     int
	height    int

	status       string
	errorMessage string
	errorSeq     int
}

func New(ctx context.Context, workflow Workflow, events *EventBridge, picker FilePicker) Model {
	if picker == nil {
		picker = ZenityPicker{}
	}
	return Model{
		ctx:      ctx,
		workflow: workflow,
		events:   events,
		picker:   picker,
		snapshot: workflow.Snapshot(),
		status:   "Loading templates...",
	}
}

// Init subscribes to controller events and loads the template catalog.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.events.Next(),
		m.run("load templates", func() error { return m.workflow.LoadTemplates(m.ctx) }),
	)
}

// run executes a controller call off the UI loop.
func (m Model) run(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return ActionDoneMsg{Action: action, Err: fn()}
	}
}

func clearErrorCmd(seq int) tea.Cmd {
	return tea.Tick(errorDisplayTime, func(time.Time) tea.Msg {
		return ClearErrorMsg{Seq: seq}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case SnapshotMsg:
		m.applySnapshot(msg.Snapshot)
		return m, m.events.Next()

	case SessionErrorMsg:
		m.errorMessage = msg.Notice
		m.errorSeq++
		return m, tea.Batch(m.events.Next(), clearErrorCmd(m.errorSeq))

	case ActionDoneMsg:
		m.applySnapshot(m.workflow.Snapshot())
		switch {
		case msg.Err == nil, errors.Is(msg.Err, usecase.ErrSuperseded):
			m.status = ""
		default:
			m.status = fmt.Sprintf("%s: %v", msg.Action, msg.Err)
		}
		return m, nil

	case FilePickedMsg:
		if msg.Err != nil {
			m.status = fmt.Sprintf("file dialog: %v", msg.Err)
			return m, nil
		}
		if msg.Path == "" {
			m.status = "No file selected"
			return m, nil
		}
		path := msg.Path
		m.status = "Reading " + path
		return m, m.run("select audio file", func() error { return m.workflow.SelectAudioFile(path) })

	case ChatSentMsg:
		m.applySnapshot(m.workflow.Snapshot())
		if msg.Err != nil {
			m.status = fmt.Sprintf("chat: %v", msg.Err)
		}
		return m, nil

	case ClearErrorMsg:
		if msg.Seq == m.errorSeq {
			m.errorMessage = ""
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) applySnapshot(snapshot domain.Snapshot) {
	if snapshot.Step != m.snapshot.Step || snapshot.ID != m.snapshot.ID {
		m.cursor = 0
		m.editing = editNone
		m.input = nil
	}
	m.snapshot = snapshot
	m.cursor = clamp(m.cursor, m.cursorLimit())
}

func (m Model) cursorLimit() int {
	switch m.snapshot.Step {
	case domain.StepIntake:
		return len(m.snapshot.Templates)
	case domain.StepVerification:
		return len(m.snapshot.Fields)
	default:
		return 0
	}
}

func clamp(v, n int) int {
	if v >= n {
		v = n - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

// call runs a fast controller call inline.
func (m Model) call(action string, fn func() error) (tea.Model, tea.Cmd) {
	if err := fn(); err != nil {
		m.status = fmt.Sprintf("%s: %v", action, err)
	} else {
		m.status = ""
	}
	m.applySnapshot(m.workflow.Snapshot())
	return m, nil
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyCtrlC:
		return m, tea.Quit
	case KeyRestart:
		return m.restart()
	}

	if m.editing != editNone {
		return m.handleEditKey(msg)
	}
	if m.focus == FocusChat {
		return m.handleChatKey(msg)
	}

	switch msg.String() {
	case KeyQuit:
		return m, tea.Quit
	case KeyTab:
		m.focus = FocusChat
		return m, nil
	}

	switch m.snapshot.Step {
	case domain.StepIntake:
		return m.handleIntakeKey(msg)
	case domain.StepTranscription:
		return m.handleTranscriptionKey(msg)
	case domain.StepVerification:
		return m.handleVerificationKey(msg)
	case domain.StepReport:
		return m.handleReportKey(msg)
	}
	return m, nil
}

func (m Model) restart() (tea.Model, tea.Cmd) {
	m.editing = editNone
	m.input = nil
	m.status = "Starting a new report..."
	return m, m.run("restart", func() error {
		m.workflow.Restart()
		return nil
	})
}

func (m Model) handleIntakeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.snapshot
	switch msg.String() {
	case KeyUp, KeyK:
		m.cursor = clamp(m.cursor-1, len(snap.Templates))
		return m, nil

	case KeyDown, KeyJ:
		m.cursor = clamp(m.cursor+1, len(snap.Templates))
		return m, nil

	case KeyEnter:
		if len(snap.Templates) == 0 {
			return m, nil
		}
		id := snap.Templates[m.cursor].ID
		return m.call("select template", func() error { return m.workflow.SelectTemplate(id) })

	case KeyReload:
		m.status = "Loading templates..."
		return m, m.run("load templates", func() error { return m.workflow.LoadTemplates(m.ctx) })

	case KeyToggleMode:
		next := domain.CaptureModeLiveRecord
		if snap.CaptureMode == domain.CaptureModeLiveRecord {
			next = domain.CaptureModeFileSelect
		}
		return m, m.run("switch capture mode", func() error { return m.workflow.SetCaptureMode(next) })

	case KeyPickFile:
		if snap.CaptureMode != domain.CaptureModeFileSelect {
			m.status = "Switch to file mode (m) to choose a file"
			return m, nil
		}
		picker := m.picker
		return m, func() tea.Msg {
			path, err := picker.PickAudio()
			return FilePickedMsg{Path: path, Err: err}
		}

	case KeyRecord:
		if snap.CaptureMode != domain.CaptureModeLiveRecord {
			m.status = "Switch to record mode (m) to use the microphone"
			return m, nil
		}
		if snap.Recording != nil {
			m.status = "Stopping recording..."
			return m, m.run("stop recording", m.workflow.StopRecording)
		}
		m.status = "Opening microphone..."
		return m, m.run("start recording", func() error { return m.workflow.StartRecording(m.ctx) })

	case KeySubmit:
		if !snap.CanSubmitIntake {
			m.status = "Select a template and provide audio first"
			return m, nil
		}
		m.status = "Processing with AI..."
		return m, m.run("transcribe", func() error { return m.workflow.SubmitIntake(m.ctx) })
	}
	return m, nil
}

func (m Model) handleTranscriptionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEdit:
		m.editing = editTranscript
		m.input = []rune(m.snapshot.RefinedTranscript)
		return m, nil
	case KeyConfirm, KeyEnter:
		return m.call("confirm transcript", m.workflow.ConfirmTranscript)
	case KeyBack:
		return m.call("back", m.workflow.BackToIntake)
	}
	return m, nil
}

func (m Model) handleVerificationKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	fields := m.snapshot.Fields
	switch msg.String() {
	case KeyUp, KeyK:
		m.cursor = clamp(m.cursor-1, len(fields))
		return m, nil

	case KeyDown, KeyJ:
		m.cursor = clamp(m.cursor+1, len(fields))
		return m, nil

	case KeyLeft, KeyRight, KeyEnter, KeyEdit:
		if len(fields) == 0 || m.snapshot.Loading {
			return m, nil
		}
		field := fields[m.cursor]
		if field.Kind == domain.FieldKindSelect {
			step := 1
			if msg.String() == KeyLeft {
				step = -1
			}
			value := cycleOption(field, step)
			return m.call("set field", func() error { return m.workflow.SetField(field.ID, value) })
		}
		if msg.String() == KeyEnter || msg.String() == KeyEdit {
			m.editing = editField
			m.input = []rune(field.Value)
		}
		return m, nil

	case KeyApprove:
		m.status = "Generating report..."
		return m, m.run("generate report", func() error { return m.workflow.ApproveExtraction(m.ctx) })

	case KeyBack:
		return m.call("back", m.workflow.BackToTranscription)
	}
	return m, nil
}

func (m Model) handleReportKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyOpen:
		return m, m.run("open download", func() error { return m.workflow.OpenDownload(m.ctx) })
	case KeyNew:
		return m.restart()
	}
	return m, nil
}

func (m Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEsc:
		m.editing = editNone
		m.input = nil
		return m, nil

	case KeyEnter:
		text := string(m.input)
		target := m.editing
		m.editing = editNone
		m.input = nil
		if target == editTranscript {
			return m.call("edit transcript", func() error { return m.workflow.EditTranscript(text) })
		}
		if m.cursor < len(m.snapshot.Fields) {
			id := m.snapshot.Fields[m.cursor].ID
			return m.call("set field", func() error { return m.workflow.SetField(id, text) })
		}
		return m, nil
	}

	m.input = editRunes(m.input, msg)
	return m, nil
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEsc, KeyTab:
		m.focus = FocusMain
		return m, nil

	case KeyEnter:
		text := string(m.chatInput)
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		if m.snapshot.ChatLoading {
			m.status = "The assistant is still replying"
			return m, nil
		}
		m.chatInput = nil
		workflow, ctx := m.workflow, m.ctx
		return m, func() tea.Msg {
			sent, err := workflow.SendChat(ctx, text)
			return ChatSentMsg{Sent: sent, Err: err}
		}
	}

	m.chatInput = editRunes(m.chatInput, msg)
	return m, nil
}

// editRunes applies a typing key to a line buffer.
func editRunes(buf []rune, msg tea.KeyMsg) []rune {
	switch msg.Type {
	case tea.KeyBackspace:
		if len(buf) > 0 {
			buf = buf[:len(buf)-1]
		}
	case tea.KeySpace:
		buf = append(buf, ' ')
	case tea.KeyRunes:
		if !msg.Alt {
			buf = append(buf, msg.Runes...)
		}
	}
	return buf
}

// cycleOption returns the option after (or before) the current value. The
// option list starts with the not-determined entry.
func cycleOption(field domain.FieldView, step int) string {
	if len(field.Options) == 0 {
		return field.Value
	}
	idx := -1
	for i, opt := range field.Options {
		if opt.Value == field.Value {
			idx = i
			break
		}
	}
	n := len(field.Options)
	next := ((idx+step)%n + n) % n
	return field.Options[next].Value
}
