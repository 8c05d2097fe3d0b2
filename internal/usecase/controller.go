package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/modelpath-dev/TuroAISTT/internal/chat"
	"github.com/modelpath-dev/TuroAISTT/internal/domain"
	"github.com/modelpath-dev/TuroAISTT/internal/extraction"
	"github.com/modelpath-dev/TuroAISTT/internal/ports"
)

// StepController owns the dictation session and moves it through
// intake, transcription, verification and report.
//
// Network calls run outside the lock. A stage response is committed only if
// the session generation is unchanged, so restarts and back transitions
// discard late results.
type StepController struct {
	capture  ports.AudioCapture
	pipeline ports.Pipeline
	opener   ports.URLOpener
	events   ports.EventSink
	editor   *extraction.Editor
	chat     *chat.Sidecar
	newID    func() string

	mu         sync.Mutex
	session    domain.Session
	generation uint64
	loading    bool
	templates  []domain.TemplateSummary
}

func NewStepController(
	capture ports.AudioCapture,
	pipeline ports.Pipeline,
	opener ports.URLOpener,
	events ports.EventSink,
) *StepController {
	c := &StepController{
		capture:  capture,
		pipeline: pipeline,
		opener:   opener,
		events:   events,
		editor:   extraction.NewEditor(),
		chat:     chat.NewSidecar(pipeline),
		newID:    uuid.NewString,
	}
	c.session = domain.Session{ID: c.newID(), Step: domain.StepIntake}

	capture.SetListener(c.recordingChanged)
	c.chat.SetListener(c.publish)
	return c
}

// Snapshot returns the current render state.
func (c *StepController) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// LoadTemplates refreshes the template catalog.
func (c *StepController) LoadTemplates(ctx context.Context) error {
	templates, err := c.pipeline.ListTemplates(ctx)
	if err != nil {
		log.Error().Err(err).Msg("template catalog unavailable")
		c.events.SessionError(domain.ErrorCodeTemplates, noticeTemplates)
		return err
	}

	c.mu.Lock()
	c.templates = append([]domain.TemplateSummary(nil), templates...)
	c.mu.Unlock()

	c.publish()
	return nil
}

// SelectTemplate picks the catalog template for the intake. An empty id
// clears the selection.
func (c *StepController) SelectTemplate(templateID string) error {
	c.mu.Lock()
	if err := c.intakeMutableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if templateID != "" && !c.inCatalogLocked(templateID) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownTemplate, templateID)
	}
	c.session.TemplateID = templateID
	c.mu.Unlock()

	c.publish()
	return nil
}

// SetCaptureMode switches between file selection and live recording. Leaving
// live recording abandons a recording in progress.
func (c *StepController) SetCaptureMode(mode domain.CaptureMode) error {
	if err := c.checkIntakeMutable(); err != nil {
		return err
	}
	if err := c.capture.SetMode(mode); err != nil {
		return err
	}
	c.publish()
	return nil
}

// SelectAudioFile makes a local file the session audio.
func (c *StepController) SelectAudioFile(path string) error {
	if err := c.checkIntakeMutable(); err != nil {
		return err
	}

	payload, err := c.capture.SelectFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("audio file rejected")
		c.events.SessionError(domain.ErrorCodeAudioFile, noticeAudioFile)
		return err
	}

	c.mu.Lock()
	if err := c.intakeMutableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.session.Audio = &payload
	c.mu.Unlock()

	log.Info().Str("name", payload.Name).Str("mimeType", payload.MimeType).Int64("bytes", payload.Size).Msg("audio file selected")
	c.publish()
	return nil
}

// StartRecording opens the microphone for a live recording.
func (c *StepController) StartRecording(ctx context.Context) error {
	if err := c.checkIntakeMutable(); err != nil {
		return err
	}

	if err := c.capture.Start(ctx); err != nil {
		if errors.Is(err, domain.ErrPermission) {
			log.Error().Err(err).Msg("microphone unavailable")
			c.events.SessionError(domain.ErrorCodePermission, noticePermission)
		}
		return err
	}
	return nil
}

// StopRecording finalizes the live recording into the session audio.
func (c *StepController) StopRecording() error {
	c.mu.Lock()
	if c.session.Step != domain.StepIntake {
		c.mu.Unlock()
		return ErrWrongStep
	}
	generation := c.generation
	c.mu.Unlock()

	payload, ok, err := c.capture.Stop()
	if !ok {
		return ErrNoRecording
	}
	if err != nil {
		log.Error().Err(err).Msg("recording could not be finalized")
		c.events.SessionError(domain.ErrorCodeAudioStop, noticeAudioStop)
		return err
	}

	c.mu.Lock()
	if c.generation != generation || c.session.Step != domain.StepIntake {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if c.loading {
		// The audio of the in-flight intake must not change under it.
		c.mu.Unlock()
		log.Warn().Int64("bytes", payload.Size).Msg("recording discarded, intake already submitted")
		c.publish()
		return ErrBusy
	}
	c.session.Audio = &payload
	c.mu.Unlock()

	c.publish()
	return nil
}

// SubmitIntake transcribes the session audio and fetches the schema of the
// resolved template. The session advances only when both calls succeed.
func (c *StepController) SubmitIntake(ctx context.Context) error {
	c.mu.Lock()
	if c.session.Step != domain.StepIntake {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.session.Step, domain.StepTranscription)
	}
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.session.Audio == nil || c.session.TemplateID == "" {
		c.mu.Unlock()
		return fmt.Errorf("%w: audio and template are required", domain.ErrPrecondition)
	}
	if _, recording := c.capture.Recording(); recording {
		c.mu.Unlock()
		return fmt.Errorf("%w: recording still in progress", domain.ErrPrecondition)
	}
	audio := *c.session.Audio
	templateID := c.session.TemplateID
	generation := c.generation
	c.loading = true
	c.mu.Unlock()
	c.publish()

	result, err := c.pipeline.Transcribe(ctx, audio, templateID)
	var schema domain.TemplateSchema
	if err == nil {
		schema, err = c.pipeline.FetchTemplateSchema(ctx, result.ResolvedTemplateID)
	}

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		log.Debug().Str("templateId", templateID).Msg("discarding intake result for a superseded session")
		return ErrSuperseded
	}
	c.loading = false
	if err != nil {
		c.mu.Unlock()
		log.Error().Err(err).Str("templateId", templateID).Msg("intake failed")
		c.events.SessionError(domain.ErrorCodeIntake, noticeIntake)
		c.publish()
		return err
	}

	c.editor.Load(schema, result.ExtractedData)
	c.session.RawTranscript = result.RawTranscript
	c.session.Segments = result.Segments
	c.session.RefinedTranscript = result.RefinedTranscript
	c.session.TemplateDetails = &schema
	c.session.DownloadURL = ""
	c.session.Step = domain.StepTranscription
	c.mu.Unlock()

	log.Info().Str("sessionId", c.sessionID()).Str("templateId", result.ResolvedTemplateID).Msg("intake complete")
	c.publish()
	return nil
}

// EditTranscript replaces the refined transcript under review.
func (c *StepController) EditTranscript(text string) error {
	c.mu.Lock()
	if c.session.Step != domain.StepTranscription {
		c.mu.Unlock()
		return ErrWrongStep
	}
	c.session.RefinedTranscript = text
	c.mu.Unlock()

	c.publish()
	return nil
}

// ConfirmTranscript accepts the transcript and moves on to field verification.
func (c *StepController) ConfirmTranscript() error {
	return c.advance(domain.StepVerification, false)
}

// BackToIntake returns from transcription review to the intake.
func (c *StepController) BackToIntake() error {
	return c.advance(domain.StepIntake, true)
}

// BackToTranscription returns from field verification to transcript review.
func (c *StepController) BackToTranscription() error {
	return c.advance(domain.StepTranscription, true)
}

// SetField edits one extracted value during verification.
func (c *StepController) SetField(fieldID string, value string) error {
	c.mu.Lock()
	if c.session.Step != domain.StepVerification {
		c.mu.Unlock()
		return ErrWrongStep
	}
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	err := c.editor.SetField(fieldID, value)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.publish()
	return nil
}

// ApproveExtraction submits the verified fields and stores the report link.
func (c *StepController) ApproveExtraction(ctx context.Context) error {
	c.mu.Lock()
	if c.session.Step != domain.StepVerification {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.session.Step, domain.StepReport)
	}
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.session.TemplateID == "" {
		c.mu.Unlock()
		return fmt.Errorf("%w: template is required", domain.ErrPrecondition)
	}
	data := c.editor.Data()
	templateID := c.session.TemplateID
	generation := c.generation
	c.loading = true
	c.mu.Unlock()
	c.publish()

	result, err := c.pipeline.GenerateReport(ctx, data, templateID)

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		log.Debug().Str("templateId", templateID).Msg("discarding report for a superseded session")
		return ErrSuperseded
	}
	c.loading = false
	if err != nil {
		c.mu.Unlock()
		log.Error().Err(err).Str("templateId", templateID).Msg("report generation failed")
		c.events.SessionError(domain.ErrorCodeReport, noticeReport)
		c.publish()
		return err
	}
	c.session.DownloadURL = result.DownloadURL
	c.session.Step = domain.StepReport
	c.mu.Unlock()

	log.Info().Str("downloadUrl", result.DownloadURL).Msg("report ready")
	c.publish()
	return nil
}

// OpenDownload opens the generated report in a new browsing context.
func (c *StepController) OpenDownload(ctx context.Context) error {
	c.mu.Lock()
	step := c.session.Step
	url := c.session.DownloadURL
	c.mu.Unlock()

	if step != domain.StepReport || url == "" {
		return fmt.Errorf("%w: no report to download", domain.ErrPrecondition)
	}
	if err := c.opener.OpenURL(ctx, url); err != nil {
		log.Error().Err(err).Str("url", url).Msg("could not open download")
		c.events.SessionError(domain.ErrorCodeDownload, noticeDownload)
		return err
	}
	return nil
}

// SendChat asks the assistant about the current session. The session is
// read, never changed.
func (c *StepController) SendChat(ctx context.Context, message string) (bool, error) {
	c.mu.Lock()
	chatCtx := domain.ChatContext{
		Transcript: c.session.RefinedTranscript,
		TemplateID: c.session.TemplateID,
	}
	if c.session.TemplateDetails != nil {
		chatCtx.Organ = c.session.TemplateDetails.Organ
	}
	c.mu.Unlock()

	return c.chat.Send(ctx, message, chatCtx)
}

// Restart abandons the current session from any step and starts a fresh one.
// The template catalog and capture mode are kept.
func (c *StepController) Restart() {
	c.capture.Abort()
	c.chat.Reset()

	c.mu.Lock()
	c.generation++
	c.loading = false
	c.editor.Reset()
	c.session = domain.Session{ID: c.newID(), Step: domain.StepIntake}
	id := c.session.ID
	c.mu.Unlock()

	log.Info().Str("sessionId", id).Msg("session restarted")
	c.publish()
}

// recordingChanged republishes on every recording tick and reports a
// recording lost to a device failure.
func (c *StepController) recordingChanged(state domain.RecordingState, active bool) {
	if !active && state.Interrupted {
		log.Error().Int("elapsedSeconds", state.ElapsedSeconds).Msg("recording ended unexpectedly")
		c.events.SessionError(domain.ErrorCodeAudioStop, noticeAudioLost)
	}
	c.publish()
}

func (c *StepController) advance(to domain.Step, rollback bool) error {
	c.mu.Lock()
	from := c.session.Step
	if !isValidTransition(from, to) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	if c.loading && !rollback {
		c.mu.Unlock()
		return ErrBusy
	}
	c.session.Step = to
	if rollback {
		// A pending stage call belongs to the step being left.
		c.generation++
		c.loading = false
	}
	c.mu.Unlock()

	log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("step changed")
	c.publish()
	return nil
}

func (c *StepController) checkIntakeMutable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intakeMutableLocked()
}

func (c *StepController) intakeMutableLocked() error {
	if c.session.Step != domain.StepIntake {
		return ErrWrongStep
	}
	if c.loading {
		return ErrBusy
	}
	return nil
}

func (c *StepController) inCatalogLocked(templateID string) bool {
	for _, t := range c.templates {
		if t.ID == templateID {
			return true
		}
	}
	return false
}

func (c *StepController) sessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

func (c *StepController) snapshotLocked() domain.Snapshot {
	session := cloneSession(c.session)
	var audio *domain.AudioInfo
	if session.Audio != nil {
		info := session.Audio.Info()
		audio = &info
	}
	session.Audio = nil

	snap := domain.Snapshot{
		Session:       session,
		Audio:         audio,
		Generation:    c.generation,
		Loading:       c.loading,
		Templates:     append([]domain.TemplateSummary(nil), c.templates...),
		CaptureMode:   c.capture.Mode(),
		ExtractedData: c.editor.Data(),
		Fields:        c.editor.Views(),
		Chat:          c.chat.Messages(),
		ChatLoading:   c.chat.Loading(),
	}
	state, recording := c.capture.Recording()
	if recording {
		snap.Recording = &state
	}
	snap.CanSubmitIntake = session.Step == domain.StepIntake &&
		!c.loading && !recording &&
		audio != nil && session.TemplateID != ""
	return snap
}

func (c *StepController) publish() {
	c.events.SnapshotChanged(c.Snapshot())
}
