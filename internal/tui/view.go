package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/modelpath-dev/TuroAISTT/internal/chat"
	"github.com/modelpath-dev/TuroAISTT/internal/domain"
)

const (
	defaultWidth  = 100
	minSplitWidth = 90
)

// View renders the full TUI.
func (m Model) View() string {
	width := m.width
	if width == 0 {
		width = defaultWidth
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderBody(width))
	if m.errorMessage != "" {
		sections = append(sections, ErrorStyle.Render("! "+m.errorMessage))
	}
	if m.status != "" {
		sections = append(sections, DimStyle.Render(m.status))
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := TitleStyle.Render("TURO DICTATION")

	current := m.snapshot.Step.Number()
	steps := make([]string, 0, len(domain.Steps))
	for _, step := range domain.Steps {
		label := fmt.Sprintf("%d %s", step.Number(), step.Title())
		switch {
		case step.Number() == current:
			steps = append(steps, StepActiveStyle.Render(label))
		case step.Number() < current:
			steps = append(steps, StepDoneStyle.Render(label))
		default:
			steps = append(steps, StepPendingStyle.Render(label))
		}
	}

	return title + "  " + strings.Join(steps, DimStyle.Render("›"))
}

func (m Model) renderBody(width int) string {
	if width < minSplitWidth {
		main := m.panel(m.focus == FocusMain, width-4).Render(m.renderMain())
		side := m.panel(m.focus == FocusChat, width-4).Render(m.renderChat())
		return lipgloss.JoinVertical(lipgloss.Left, main, side)
	}

	chatWidth := width * 35 / 100
	mainWidth := width - chatWidth - 8
	main := m.panel(m.focus == FocusMain, mainWidth).Render(m.renderMain())
	side := m.panel(m.focus == FocusChat, chatWidth).Render(m.renderChat())
	return lipgloss.JoinHorizontal(lipgloss.Top, main, side)
}

func (m Model) panel(active bool, width int) lipgloss.Style {
	if active {
		return PanelActiveStyle.Width(width)
	}
	return PanelStyle.Width(width)
}

func (m Model) renderMain() string {
	switch m.snapshot.Step {
	case domain.StepIntake:
		return m.renderIntake()
	case domain.StepTranscription:
		return m.renderTranscription()
	case domain.StepVerification:
		return m.renderVerification()
	case domain.StepReport:
		return m.renderReport()
	default:
		return ""
	}
}

func (m Model) renderIntake() string {
	snap := m.snapshot
	var b strings.Builder

	b.WriteString(PanelTitleStyle.Render("Template") + "\n")
	if len(snap.Templates) == 0 {
		b.WriteString(DimStyle.Render("No templates loaded (t to retry)") + "\n")
	}
	for i, t := range snap.Templates {
		marker := "  "
		if i == m.cursor {
			marker = "> "
		}
		dot := "○ "
		if t.ID == snap.TemplateID {
			dot = "● "
		}
		line := marker + dot + t.Name + " " + DimStyle.Render(t.ID)
		if i == m.cursor {
			line = SelectedStyle.Render(marker+dot+t.Name) + " " + DimStyle.Render(t.ID)
		}
		b.WriteString(line + "\n")
	}
	if snap.TemplateID != "" {
		b.WriteString(DimStyle.Render("Body region: "+domain.TemplatePrefix(snap.TemplateID)) + "\n")
	}

	b.WriteString("\n" + PanelTitleStyle.Render("Audio") + "\n")
	mode := "File upload"
	if snap.CaptureMode == domain.CaptureModeLiveRecord {
		mode = "Live recording"
	}
	b.WriteString("Mode: " + mode + "\n")
	if snap.Recording != nil {
		b.WriteString(RecordingDotStyle.Render("● REC "+formatElapsed(snap.Recording.ElapsedSeconds)) + "\n")
	}
	if snap.Audio != nil {
		b.WriteString(fmt.Sprintf("%s %s\n",
			snap.Audio.Name,
			DimStyle.Render(fmt.Sprintf("(%.2f MB, %s)", snap.Audio.SizeMB(), snap.Audio.MimeType)),
		))
	} else if snap.Recording == nil {
		b.WriteString(DimStyle.Render("No audio yet") + "\n")
	}

	if snap.Loading {
		b.WriteString("\n" + LoadingStyle.Render("Processing with AI..."))
	} else if snap.CanSubmitIntake {
		b.WriteString("\n" + SuccessStyle.Render("Ready to transcribe (s)"))
	}
	return b.String()
}

func (m Model) renderTranscription() string {
	snap := m.snapshot
	var b strings.Builder

	b.WriteString(PanelTitleStyle.Render("Raw transcript") + "\n")
	b.WriteString(DimStyle.Render(snap.RawTranscript) + "\n")
	for _, seg := range snap.Segments {
		b.WriteString(DimStyle.Render(fmt.Sprintf("[%.1fs-%.1fs] ", seg.Start, seg.End)) + seg.Text + "\n")
	}

	b.WriteString("\n" + PanelTitleStyle.Render("Refined transcript") + "\n")
	if m.editing == editTranscript {
		b.WriteString(InputStyle.Render(string(m.input) + "█"))
	} else {
		b.WriteString(snap.RefinedTranscript)
	}
	return b.String()
}

func (m Model) renderVerification() string {
	snap := m.snapshot
	var b strings.Builder

	if snap.TemplateDetails != nil {
		b.WriteString(PanelTitleStyle.Render(snap.TemplateDetails.Name))
		if snap.TemplateDetails.Organ != "" {
			b.WriteString(DimStyle.Render(" · " + snap.TemplateDetails.Organ))
		}
		b.WriteString("\n")
	}

	section := ""
	for i, field := range snap.Fields {
		if field.Section != section || i == 0 {
			section = field.Section
			b.WriteString("\n" + PanelTitleActiveStyle.Render(section) + "\n")
		}

		marker := "  "
		label := field.Label
		if i == m.cursor {
			marker = "> "
			label = SelectedStyle.Render(label)
		}

		var value string
		switch {
		case i == m.cursor && m.editing == editField:
			value = InputStyle.Render(string(m.input) + "█")
		case field.NotDetermined:
			value = NotDeterminedStyle.Render(domain.NotDeterminedLabel)
		default:
			value = fieldValueLabel(field)
		}
		if field.Kind == domain.FieldKindSelect && i == m.cursor {
			value = DimStyle.Render("‹ ") + value + DimStyle.Render(" ›")
		}
		b.WriteString(marker + label + ": " + value + "\n")
	}

	if snap.Loading {
		b.WriteString("\n" + LoadingStyle.Render("Generating report..."))
	}
	return b.String()
}

func fieldValueLabel(field domain.FieldView) string {
	for _, opt := range field.Options {
		if opt.Value == field.Value {
			return opt.Label
		}
	}
	return field.Value
}

func (m Model) renderReport() string {
	var b strings.Builder
	b.WriteString(SuccessStyle.Render("Report ready") + "\n\n")
	b.WriteString(m.snapshot.DownloadURL + "\n\n")
	b.WriteString(DimStyle.Render("o to open the report, n for a new report"))
	return b.String()
}

func (m Model) renderChat() string {
	var b strings.Builder

	title := PanelTitleStyle
	if m.focus == FocusChat {
		title = PanelTitleActiveStyle
	}
	b.WriteString(title.Render("Assistant") + "\n")

	if len(m.snapshot.Chat) == 0 {
		b.WriteString(DimStyle.Render(chat.Greeting) + "\n")
	}
	for _, msg := range m.snapshot.Chat {
		switch msg.Role {
		case domain.ChatRoleUser:
			b.WriteString(UserMessageStyle.Render("You: ") + msg.Content + "\n")
		case domain.ChatRoleAssistant:
			b.WriteString(AssistantMessageStyle.Render("Assistant: ") + msg.Content + "\n")
		default:
			b.WriteString(ErrorMessageStyle.Render(msg.Content) + "\n")
		}
	}
	if m.snapshot.ChatLoading {
		b.WriteString(LoadingStyle.Render("Assistant is typing...") + "\n")
	}

	cursor := ""
	if m.focus == FocusChat {
		cursor = "█"
	}
	b.WriteString(InputStyle.Render(string(m.chatInput) + cursor))
	return b.String()
}

func (m Model) renderFooter() string {
	var keys [][2]string
	switch {
	case m.editing != editNone:
		keys = [][2]string{{"enter", "save"}, {"esc", "cancel"}}
	case m.focus == FocusChat:
		keys = [][2]string{{"enter", "send"}, {"tab", "back"}}
	default:
		switch m.snapshot.Step {
		case domain.StepIntake:
			keys = [][2]string{{"↑↓", "template"}, {"enter", "select"}, {"m", "mode"}, {"f", "file"}, {"r", "record"}, {"s", "transcribe"}}
		case domain.StepTranscription:
			keys = [][2]string{{"e", "edit"}, {"c", "confirm"}, {"b", "back"}}
		case domain.StepVerification:
			keys = [][2]string{{"↑↓", "field"}, {"←→", "option"}, {"e", "edit"}, {"a", "approve"}, {"b", "back"}}
		case domain.StepReport:
			keys = [][2]string{{"o", "open"}, {"n", "new report"}}
		}
		keys = append(keys, [2]string{"tab", "chat"}, [2]string{"q", "quit"})
	}
	keys = append(keys, [2]string{"ctrl+r", "restart"})

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, FooterKeyStyle.Render(k[0])+" "+FooterDescStyle.Render(k[1]))
	}
	return strings.Join(parts, "  ")
}

func formatElapsed(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
