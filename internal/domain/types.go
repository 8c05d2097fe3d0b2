package domain

import (
	"errors"
	"strings"
)

// Step models the four-stage dictation workflow.
type Step string

const (
	StepIntake        Step = "intake"
	StepTranscription Step = "transcription"
	StepVerification  Step = "verification"
	StepReport        Step = "report"
)

// Steps lists the workflow stages in order.
var Steps = []Step{StepIntake, StepTranscription, StepVerification, StepReport}

// Number returns the 1-based position of the step, or 0 for unknown values.
func (s Step) Number() int {
	for i, step := range Steps {
		if step == s {
			return i + 1
		}
	}
	return 0
}

// Title is the human-readable step name.
func (s Step) Title() string {
	switch s {
	case StepIntake:
		return "Initial Intake"
	case StepTranscription:
		return "Transcription"
	case StepVerification:
		return "Verification"
	case StepReport:
		return "Final Report"
	default:
		return "Unknown"
	}
}

// CaptureMode selects how the intake audio is acquired.
type CaptureMode string

const (
	CaptureModeFileSelect CaptureMode = "file"
	CaptureModeLiveRecord CaptureMode = "record"
)

// Valid reports whether the mode is one of the known capture modes.
func (m CaptureMode) Valid() bool {
	return m == CaptureModeFileSelect || m == CaptureModeLiveRecord
}

// AudioPayload is the captured or selected dictation audio.
type AudioPayload struct {
	Data     []byte
	MimeType string
	Name     string
	Size     int64
}

// Info strips the binary body for display.
func (p AudioPayload) Info() AudioInfo {
	return AudioInfo{Name: p.Name, MimeType: p.MimeType, Size: p.Size}
}

// AudioInfo describes an audio payload without its bytes.
type AudioInfo struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// SizeMB returns the payload size in mebibytes.
func (a AudioInfo) SizeMB() float64 {
	return float64(a.Size) / 1024 / 1024
}

// RecordingState exists only while a live recording attempt is active.
// Interrupted is set on the final state of a recording whose device stream
// ended without a stop request.
type RecordingState struct {
	IsRecording    bool `json:"isRecording"`
	ElapsedSeconds int  `json:"elapsedSeconds"`
	Interrupted    bool `json:"interrupted,omitempty"`
}

// Segment is a time-bounded fragment of transcribed speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TemplateSummary is one entry of the template catalog.
type TemplateSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TemplatePrefix returns the body-region prefix of a template id, e.g. "chest" for "chest_xray".
func TemplatePrefix(templateID string) string {
	prefix, _, _ := strings.Cut(templateID, "_")
	return prefix
}

// FieldKind tags a template field as free text or a closed choice.
type FieldKind string

const (
	FieldKindText   FieldKind = "text"
	FieldKindSelect FieldKind = "select"
)

// Option is one allowed value of a select field.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldSpec describes one structured report field.
type FieldSpec struct {
	ID      string    `json:"id"`
	Label   string    `json:"label"`
	Kind    FieldKind `json:"kind"`
	Options []Option  `json:"options,omitempty"`
}

// OptionLabel maps a stored value to its display label.
func (f FieldSpec) OptionLabel(value string) (string, bool) {
	for _, opt := range f.Options {
		if opt.Value == value {
			return opt.Label, true
		}
	}
	return "", false
}

// Section groups fields under a heading.
type Section struct {
	Name   string      `json:"name"`
	Fields []FieldSpec `json:"fields"`
}

// TemplateSchema is the server-defined report form. It is immutable once fetched.
type TemplateSchema struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Organ    string    `json:"organ"`
	Sections []Section `json:"sections"`
}

// Field looks up a field by id.
func (t TemplateSchema) Field(id string) (FieldSpec, bool) {
	for _, section := range t.Sections {
		for _, field := range section.Fields {
			if field.ID == id {
				return field, true
			}
		}
	}
	return FieldSpec{}, false
}

// FieldIDs returns every field id in schema order.
func (t TemplateSchema) FieldIDs() []string {
	var ids []string
	for _, section := range t.Sections {
		for _, field := range section.Fields {
			ids = append(ids, field.ID)
		}
	}
	return ids
}

// TranscribeResult is the backend's answer to a transcription request.
type TranscribeResult struct {
	RawTranscript      string
	Segments           []Segment
	RefinedTranscript  string
	ExtractedData      map[string]string
	ResolvedTemplateID string
}

// ReportResult carries the location of a generated report.
type ReportResult struct {
	DownloadURL string
}

// ChatRole identifies the author of a sidecar message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleError     ChatRole = "error"
)

// ChatMessage is one entry of the sidecar conversation.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatContext is the session context a chat turn is grounded on.
type ChatContext struct {
	Transcript string
	Organ      string
	TemplateID string
}

// ChatRequest is one chat round trip.
type ChatRequest struct {
	Message string
	Context ChatContext
	History []ChatMessage
}

// Session is the mutable state of one end-to-end workflow run.
type Session struct {
	ID                string          `json:"id"`
	Step              Step            `json:"step"`
	Audio             *AudioPayload   `json:"-"`
	TemplateID        string          `json:"templateId"`
	RawTranscript     string          `json:"rawTranscript"`
	Segments          []Segment       `json:"segments"`
	RefinedTranscript string          `json:"refinedTranscript"`
	TemplateDetails   *TemplateSchema `json:"templateDetails,omitempty"`
	DownloadURL       string          `json:"downloadUrl,omitempty"`
}

// NotDeterminedLabel marks fields that carry no value.
const NotDeterminedLabel = "not determined"

// FieldView is the render contract of one editable field.
type FieldView struct {
	Section       string    `json:"section"`
	ID            string    `json:"id"`
	Label         string    `json:"label"`
	Kind          FieldKind `json:"kind"`
	Options       []Option  `json:"options,omitempty"`
	Value         string    `json:"value"`
	NotDetermined bool      `json:"notDetermined"`
}

// Snapshot is the render-relevant view of the controller state.
type Snapshot struct {
	Session
	Audio           *AudioInfo        `json:"audio,omitempty"`
	Generation      uint64            `json:"generation"`
	Loading         bool              `json:"loading"`
	Templates       []TemplateSummary `json:"templates"`
	CaptureMode     CaptureMode       `json:"captureMode"`
	Recording       *RecordingState   `json:"recording,omitempty"`
	ExtractedData   map[string]string `json:"extractedData"`
	Fields          []FieldView       `json:"fields"`
	Chat            []ChatMessage     `json:"chat"`
	ChatLoading     bool              `json:"chatLoading"`
	CanSubmitIntake bool              `json:"canSubmitIntake"`
}

// ErrorCode identifies user-facing failure categories.
type ErrorCode string

const (
	ErrorCodeStartup    ErrorCode = "startup"
	ErrorCodePermission ErrorCode = "permission"
	ErrorCodeAudioStop  ErrorCode = "audio_stop"
	ErrorCodeAudioFile  ErrorCode = "audio_file"
	ErrorCodeIntake     ErrorCode = "intake"
	ErrorCodeReport     ErrorCode = "report"
	ErrorCodeTemplates  ErrorCode = "templates"
	ErrorCodeDownload   ErrorCode = "download"
)

var (
	// ErrPermission reports a denied or unavailable microphone.
	ErrPermission = errors.New("microphone access denied or not available")
	// ErrPrecondition reports an action attempted without its required session fields.
	ErrPrecondition = errors.New("action precondition not met")
	// ErrNetwork reports a failed request or a malformed backend payload.
	ErrNetwork = errors.New("backend request failed")
	// ErrSchema reports a template schema the client cannot represent.
	ErrSchema = errors.New("invalid template schema")
)
