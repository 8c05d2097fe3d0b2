package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/modelpath-dev/TuroAISTT/internal/chat"
	"github.com/modelpath-dev/TuroAISTT/internal/domain"
	"github.com/modelpath-dev/TuroAISTT/internal/usecase"
)

type fakeWorkflow struct {
	mu       sync.Mutex
	snapshot domain.Snapshot
	calls    []string
	err      error
}

func (f *fakeWorkflow) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeWorkflow) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeWorkflow) Snapshot() domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeWorkflow) LoadTemplates(context.Context) error          { return f.record("load") }
func (f *fakeWorkflow) SelectTemplate(id string) error               { return f.record("template:" + id) }
func (f *fakeWorkflow) SetCaptureMode(mode domain.CaptureMode) error { return f.record("mode:" + string(mode)) }
func (f *fakeWorkflow) SelectAudioFile(path string) error            { return f.record("file:" + path) }
func (f *fakeWorkflow) StartRecording(context.Context) error         { return f.record("start") }
func (f *fakeWorkflow) StopRecording() error                         { return f.record("stop") }
func (f *fakeWorkflow) SubmitIntake(context.Context) error           { return f.record("submit") }
func (f *fakeWorkflow) EditTranscript(text string) error             { return f.record("transcript:" + text) }
func (f *fakeWorkflow) ConfirmTranscript() error                     { return f.record("confirm") }
func (f *fakeWorkflow) BackToIntake() error                          { return f.record("back:intake") }
func (f *fakeWorkflow) BackToTranscription() error                   { return f.record("back:transcription") }
func (f *fakeWorkflow) ApproveExtraction(context.Context) error      { return f.record("approve") }
func (f *fakeWorkflow) OpenDownload(context.Context) error           { return f.record("open") }
func (f *fakeWorkflow) Restart()                                     { _ = f.record("restart") }

func (f *fakeWorkflow) SetField(id string, value string) error {
	return f.record("field:" + id + "=" + value)
}

func (f *fakeWorkflow) SendChat(_ context.Context, message string) (bool, error) {
	return true, f.record("chat:" + message)
}

type fakePicker struct {
	path string
	err  error
}

func (p fakePicker) PickAudio() (string, error) { return p.path, p.err }

func newTestModel(snapshot domain.Snapshot) (Model, *fakeWorkflow) {
	workflow := &fakeWorkflow{snapshot: snapshot}
	m := New(context.Background(), workflow, NewEventBridge(), fakePicker{path: "/tmp/dictation.wav"})
	return m, workflow
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	model, ok := updated.(Model)
	if !ok {
		t.Fatalf("unexpected model type %T", updated)
	}
	return model, cmd
}

func intakeSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Session:     domain.Session{ID: "s1", Step: domain.StepIntake},
		CaptureMode: domain.CaptureModeFileSelect,
		Templates: []domain.TemplateSummary{
			{ID: "chest_xray", Name: "Chest X-Ray"},
			{ID: "abdomen_ct", Name: "Abdomen CT"},
		},
	}
}

func verificationSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Session: domain.Session{ID: "s1", Step: domain.StepVerification, TemplateID: "chest_xray"},
		Fields: []domain.FieldView{
			{
				Section: "Lungs", ID: "lung_status", Label: "Lung status", Kind: domain.FieldKindSelect,
				Options: []domain.Option{
					{Value: "", Label: domain.NotDeterminedLabel},
					{Value: "clear", Label: "Clear"},
					{Value: "opacity", Label: "Opacity"},
				},
				NotDetermined: true,
			},
			{Section: "Lungs", ID: "impression", Label: "Impression", Kind: domain.FieldKindText, Value: "normal"},
		},
	}
}

func TestNewModel(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(intakeSnapshot())
	if m.focus != FocusMain {
		t.Fatalf("new model should focus the main panel")
	}
	if m.snapshot.ID != "s1" {
		t.Fatalf("expected initial snapshot, got %+v", m.snapshot)
	}
	if m.Init() == nil {
		t.Fatalf("expected init command")
	}
}

func TestSelectTemplateWithCursor(t *testing.T) {
	t.Parallel()

	m, workflow := newTestModel(intakeSnapshot())
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 1 {
		t.Fatalf("cursor should stop at the last template, got %d", m.cursor)
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	calls := workflow.Calls()
	if len(calls) != 1 || calls[0] != "template:abdomen_ct" {
		t.Fatalf("unexpected calls: %v", calls)
	}
	if m.status != "" {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestSubmitRequiresReadyIntake(t *testing.T) {
	t.Parallel()

	m, workflow := newTestModel(intakeSnapshot())
	m, cmd := press(t, m, keyRunes(KeySubmit))
	if cmd != nil {
		t.Fatalf("submit should be refused")
	}
	if !strings.Contains(m.status, "template and provide audio") {
		t.Fatalf("unexpected status %q", m.status)
	}

	snap := intakeSnapshot()
	snap.CanSubmitIntake = true
	m, workflow = newTestModel(snap)
	m, cmd = press(t, m, keyRunes(KeySubmit))
	if cmd == nil {
		t.Fatalf("expected submit command")
	}
	if m.status != "Processing with AI..." {
		t.Fatalf("unexpected status %q", m.status)
	}
	done, ok := cmd().(ActionDoneMsg)
	if !ok || done.Err != nil {
		t.Fatalf("unexpected result %+v", done)
	}
	if calls := workflow.Calls(); len(calls) != 1 || calls[0] != "submit" {
		t.Fatalf("unexpected calls: %v", calls)
	}
}

func TestActionErrorShownInStatus(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(intakeSnapshot())
	m, _ = press(t, m, ActionDoneMsg{Action: "transcribe", Err: errors.New("backend down")})
	if m.status != "transcribe: backend down" {
		t.Fatalf("unexpected status %q", m.status)
	}

	m, _ = press(t, m, ActionDoneMsg{Action: "transcribe", Err: usecase.ErrSuperseded})
	if m.status != "" {
		t.Fatalf("superseded results should be silent, got %q", m.status)
	}
}

func TestPickFileFlow(t *testing.T) {
	t.Parallel()

	m, workflow := newTestModel(intakeSnapshot())
	m, cmd := press(t, m, keyRunes(KeyPickFile))
	if cmd == nil {
		t.Fatalf("expected picker command")
	}
	picked, ok := cmd().(FilePickedMsg)
	if !ok || picked.Path != "/tmp/dictation.wav" {
		t.Fatalf("unexpected picker result %+v", picked)
	}

	m, cmd = press(t, m, picked)
	if cmd == nil {
		t.Fatalf("expected select command")
	}
	cmd()
	if calls := workflow.Calls(); len(calls) != 1 || calls[0] != "file:/tmp/dictation.wav" {
		t.Fatalf("unexpected calls: %v", calls)
	}

	m, cmd = press(t, m, FilePickedMsg{})
	if cmd != nil || m.status != "No file selected" {
		t.Fatalf("dismissed dialog should only update status, got %q", m.status)
	}
}

func TestRecordKeyTogglesRecording(t *testing.T) {
	t.Parallel()

	snap := intakeSnapshot()
	m, _ := newTestModel(snap)
	m, cmd := press(t, m, keyRunes(KeyRecord))
	if cmd != nil || !strings.Contains(m.status, "record mode") {
		t.Fatalf("record key should require record mode, got %q", m.status)
	}

	snap.CaptureMode = domain.CaptureModeLiveRecord
	m, workflow := newTestModel(snap)
	_, cmd = press(t, m, keyRunes(KeyRecord))
	cmd()

	snap.Recording = &domain.RecordingState{IsRecording: true, ElapsedSeconds: 3}
	m, _ = press(t, m, SnapshotMsg{Snapshot: snap})
	_, cmd = press(t, m, keyRunes(KeyRecord))
	cmd()

	calls := workflow.Calls()
	if len(calls) != 2 || calls[0] != "start" || calls[1] != "stop" {
		t.Fatalf("unexpected calls: %v", calls)
	}
}

func TestEditTranscript(t *testing.T) {
	t.Parallel()

	m, workflow := newTestModel(domain.Snapshot{
		Session: domain.Session{ID: "s1", Step: domain.StepTranscription, RefinedTranscript: "lungs cleat"},
	})
	m, _ = press(t, m, keyRunes(KeyEdit))
	if m.editing != editTranscript {
		t.Fatalf("expected transcript editing")
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	m, _ = press(t, m, keyRunes("r"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	m, _ = press(t, m, keyRunes("ok"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.editing != editNone {
		t.Fatalf("editing should end on enter")
	}
	calls := workflow.Calls()
	if len(calls) != 1 || calls[0] != "transcript:lungs clear ok" {
		t.Fatalf("unexpected calls: %v", calls)
	}

	// Keys typed while editing never trigger step actions.
	m, _ = press(t, m, keyRunes(KeyEdit))
	m, _ = press(t, m, keyRunes(KeyConfirm))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if calls := workflow.Calls(); len(calls) != 1 {
		t.Fatalf("unexpected calls after cancel: %v", calls)
	}

	press(t, m, keyRunes(KeyConfirm))
	if calls := workflow.Calls(); calls[len(calls)-1] != "confirm" {
		t.Fatalf("expected confirm, got %v", calls)
	}
}

func TestVerificationCyclesSelectOptions(t *testing.T) {
	t.Parallel()

	m, workflow := newTestModel(verificationSnapshot())
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyLeft})

	calls := workflow.Calls()
	if len(calls) != 2 || calls[0] != "field:lung_status=clear" || calls[1] != "field:lung_status=opacity" {
		t.Fatalf("unexpected calls: %v", calls)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.editing != editField || string(m.input) != "normal" {
		t.Fatalf("expected text field editing, got %v %q", m.editing, string(m.input))
	}
	m, _ = press(t, m, keyRunes(" study"))
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	calls = workflow.Calls()
	if calls[len(calls)-1] != "field:impression=normal study" {
		t.Fatalf("unexpected calls: %v", calls)
	}
}

func TestCycleOption(t *testing.T) {
	t.Parallel()

	field := verificationSnapshot().Fields[0]
	if got := cycleOption(field, 1); got != "clear" {
		t.Fatalf("unexpected next option %q", got)
	}
	field.Value = "opacity"
	if got := cycleOption(field, 1); got != "" {
		t.Fatalf("expected wrap to not determined, got %q", got)
	}
	field.Value = "unlisted"
	if got := cycleOption(field, 1); got != "" {
		t.Fatalf("unmatched value should move to the first option, got %q", got)
	}
}

func TestChatInput(t *testing.T) {
	t.Parallel()

	m, workflow := newTestModel(intakeSnapshot())
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != FocusChat {
		t.Fatalf("tab should focus chat")
	}

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatalf("empty chat input should not send")
	}

	m, _ = press(t, m, keyRunes("q"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	m, _ = press(t, m, keyRunes("size?"))
	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected chat command")
	}
	if len(m.chatInput) != 0 {
		t.Fatalf("chat input should be cleared")
	}
	sent, ok := cmd().(ChatSentMsg)
	if !ok || !sent.Sent {
		t.Fatalf("unexpected chat result %+v", sent)
	}
	if calls := workflow.Calls(); len(calls) != 1 || calls[0] != "chat:q size?" {
		t.Fatalf("unexpected calls: %v", calls)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.focus != FocusMain {
		t.Fatalf("esc should return focus")
	}
}

func TestSessionErrorClearsAfterTimeout(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(intakeSnapshot())
	m, cmd := press(t, m, SessionErrorMsg{Code: domain.ErrorCodeIntake, Notice: "Error processing audio."})
	if cmd == nil || m.errorMessage != "Error processing audio." {
		t.Fatalf("unexpected error state %q", m.errorMessage)
	}

	m, _ = press(t, m, SessionErrorMsg{Code: domain.ErrorCodeReport, Notice: "second"})
	m, _ = press(t, m, ClearErrorMsg{Seq: 1})
	if m.errorMessage != "second" {
		t.Fatalf("stale clear should keep the newer error, got %q", m.errorMessage)
	}
	m, _ = press(t, m, ClearErrorMsg{Seq: 2})
	if m.errorMessage != "" {
		t.Fatalf("expected error cleared, got %q", m.errorMessage)
	}
}

func TestStepChangeResetsCursor(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(verificationSnapshot())
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, keyRunes(KeyEdit))

	m, _ = press(t, m, SnapshotMsg{Snapshot: intakeSnapshot()})
	if m.cursor != 0 || m.editing != editNone {
		t.Fatalf("expected reset ui state, got cursor=%d editing=%v", m.cursor, m.editing)
	}
}

func TestReportKeys(t *testing.T) {
	t.Parallel()

	m, workflow := newTestModel(domain.Snapshot{
		Session: domain.Session{ID: "s1", Step: domain.StepReport, DownloadURL: "http://localhost:8000/api/download/r.docx"},
	})
	_, cmd := press(t, m, keyRunes(KeyOpen))
	cmd()
	_, cmd = press(t, m, keyRunes(KeyNew))
	cmd()

	calls := workflow.Calls()
	if len(calls) != 2 || calls[0] != "open" || calls[1] != "restart" {
		t.Fatalf("unexpected calls: %v", calls)
	}
}

func TestViewRendersSteps(t *testing.T) {
	t.Parallel()

	// The greeting wraps inside the chat panel.
	greetingStart := strings.SplitN(chat.Greeting, " the ", 2)[0]

	snap := intakeSnapshot()
	snap.TemplateID = "chest_xray"
	snap.Audio = &domain.AudioInfo{Name: "dictation.wav", MimeType: "audio/wav", Size: 2 * 1024 * 1024}
	m, _ := newTestModel(snap)
	view := m.View()
	for _, want := range []string{"Chest X-Ray", "Body region: chest", "dictation.wav", "2.00 MB", greetingStart} {
		if !strings.Contains(view, want) {
			t.Fatalf("intake view missing %q:\n%s", want, view)
		}
	}

	m, _ = newTestModel(verificationSnapshot())
	view = m.View()
	for _, want := range []string{"Lung status", domain.NotDeterminedLabel, "normal"} {
		if !strings.Contains(view, want) {
			t.Fatalf("verification view missing %q:\n%s", want, view)
		}
	}
}

func TestEventBridgeForwardsEvents(t *testing.T) {
	t.Parallel()

	bridge := NewEventBridge()
	bridge.SnapshotChanged(domain.Snapshot{Generation: 4})
	bridge.SessionError(domain.ErrorCodeReport, "Error generating report.")

	snap, ok := bridge.Next()().(SnapshotMsg)
	if !ok || snap.Snapshot.Generation != 4 {
		t.Fatalf("unexpected first event %+v", snap)
	}
	sessionErr, ok := bridge.Next()().(SessionErrorMsg)
	if !ok || sessionErr.Code != domain.ErrorCodeReport {
		t.Fatalf("unexpected second event %+v", sessionErr)
	}

	for i := 0; i < eventBuffer+5; i++ {
		bridge.SnapshotChanged(domain.Snapshot{})
	}
}
