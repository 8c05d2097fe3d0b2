package audio

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/modelpath-dev/TuroAISTT/internal/domain"
	"github.com/modelpath-dev/TuroAISTT/internal/ports"
)

var (
	ErrWrongMode       = errors.New("action not available in the current capture mode")
	ErrRecordingActive = errors.New("recording already in progress")
	ErrEmptyAudio      = errors.New("no audio captured")
)

var audioMimeTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".flac": "audio/flac",
	".webm": "audio/webm",
}

type ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type timeTicker struct{ *time.Ticker }

func (t timeTicker) Chan() <-chan time.Time { return t.C }

func newTimeTicker(d time.Duration) ticker { return timeTicker{time.NewTicker(d)} }

// CaptureManager acquires intake audio either from a selected file or from a
// live microphone recording. It exclusively owns the microphone stream and the
// elapsed-time tick of the active recording.
type CaptureManager struct {
	mic       ports.Microphone
	cfg       ports.AudioConfig
	chunkSize int
	newTicker func(time.Duration) ticker

	mu       sync.Mutex
	mode     domain.CaptureMode
	active   *recording
	listener func(state domain.RecordingState, active bool)
}

type recording struct {
	cancel context.CancelFunc
	stream ports.MicrophoneStream

	// guarded by CaptureManager.mu
	elapsed  int
	stopping bool

	// written only by the pump goroutine
	chunks [][]byte
	size   int64

	tickStop    chan struct{}
	tickDone    chan struct{}
	pumpDone    chan struct{}
	releaseOnce sync.Once
	releaseErr  error
}

func NewCaptureManager(mic ports.Microphone, cfg ports.AudioConfig) *CaptureManager {
	return &CaptureManager{
		mic:       mic,
		cfg:       cfg,
		chunkSize: 4096,
		newTicker: newTimeTicker,
		mode:      domain.CaptureModeFileSelect,
	}
}

// SetListener registers the callback invoked on every recording state change.
func (m *CaptureManager) SetListener(fn func(state domain.RecordingState, active bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = fn
}

func (m *CaptureManager) Mode() domain.CaptureMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SetMode switches between file selection and live recording. Leaving live
// recording abandons any recording in progress.
func (m *CaptureManager) SetMode(mode domain.CaptureMode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown capture mode %q", mode)
	}

	m.mu.Lock()
	if m.mode == mode {
		m.mu.Unlock()
		return nil
	}
	m.mode = mode
	rec := m.detachLocked()
	m.mu.Unlock()

	if rec != nil {
		m.discard(rec)
	}
	return nil
}

// SelectFile wraps a local audio file as the intake payload.
func (m *CaptureManager) SelectFile(path string) (domain.AudioPayload, error) {
	if m.Mode() != domain.CaptureModeFileSelect {
		return domain.AudioPayload{}, ErrWrongMode
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.AudioPayload{}, fmt.Errorf("read audio file %q: %w", path, err)
	}
	if len(data) == 0 {
		return domain.AudioPayload{}, fmt.Errorf("audio file %q: %w", path, ErrEmptyAudio)
	}

	return domain.AudioPayload{
		Data:     data,
		MimeType: detectMimeType(path, data),
		Name:     filepath.Base(path),
		Size:     int64(len(data)),
	}, nil
}

// Start opens the microphone and begins buffering audio. Device failures are
// returned as domain.ErrPermission and leave no recording state behind.
func (m *CaptureManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.mode != domain.CaptureModeLiveRecord {
		m.mu.Unlock()
		return ErrWrongMode
	}
	if m.active != nil {
		m.mu.Unlock()
		return ErrRecordingActive
	}
	m.mu.Unlock()

	recCtx, cancel := context.WithCancel(ctx)
	stream, err := m.mic.Open(recCtx, m.cfg)
	if err != nil {
		cancel()
		if !errors.Is(err, domain.ErrPermission) {
			err = fmt.Errorf("%w: %v", domain.ErrPermission, err)
		}
		return err
	}

	rec := &recording{
		cancel:   cancel,
		stream:   stream,
		tickStop: make(chan struct{}),
		tickDone: make(chan struct{}),
		pumpDone: make(chan struct{}),
	}

	m.mu.Lock()
	if m.active != nil || m.mode != domain.CaptureModeLiveRecord {
		m.mu.Unlock()
		m.release(rec)
		return ErrRecordingActive
	}
	m.active = rec
	m.mu.Unlock()

	go m.pump(rec)
	go m.tick(rec)

	log.Info().Msg("recording started")
	m.notify(domain.RecordingState{IsRecording: true}, true)
	return nil
}

// Stop finalizes the active recording into one payload. Without an active
// recording it does nothing and reports ok=false.
func (m *CaptureManager) Stop() (domain.AudioPayload, bool, error) {
	m.mu.Lock()
	rec := m.detachLocked()
	m.mu.Unlock()
	if rec == nil {
		return domain.AudioPayload{}, false, nil
	}

	m.release(rec)
	<-rec.tickDone
	<-rec.pumpDone
	m.notify(domain.RecordingState{ElapsedSeconds: rec.elapsed}, false)

	payload := rec.payload()
	log.Info().Int("elapsed_seconds", rec.elapsed).Int64("bytes", payload.Size).Msg("recording stopped")
	if payload.Size == 0 {
		return domain.AudioPayload{}, true, ErrEmptyAudio
	}
	return payload, true, nil
}

// Abort discards the active recording, if any.
func (m *CaptureManager) Abort() {
	m.mu.Lock()
	rec := m.detachLocked()
	m.mu.Unlock()
	if rec != nil {
		m.discard(rec)
	}
}

// Recording reports the live recording state.
func (m *CaptureManager) Recording() (domain.RecordingState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return domain.RecordingState{}, false
	}
	return domain.RecordingState{IsRecording: true, ElapsedSeconds: m.active.elapsed}, true
}

func (m *CaptureManager) detachLocked() *recording {
	rec := m.active
	if rec != nil {
		rec.stopping = true
		m.active = nil
	}
	return rec
}

func (m *CaptureManager) discard(rec *recording) {
	m.release(rec)
	<-rec.tickDone
	<-rec.pumpDone
	log.Info().Int("elapsed_seconds", rec.elapsed).Msg("recording discarded")
	m.notify(domain.RecordingState{}, false)
}

// release stops the tick and frees the device exactly once.
func (m *CaptureManager) release(rec *recording) {
	rec.releaseOnce.Do(func() {
		if rec.tickStop != nil {
			close(rec.tickStop)
		}
		rec.releaseErr = rec.stream.Stop()
		rec.cancel()
		if rec.releaseErr != nil {
			log.Warn().Err(rec.releaseErr).Msg("microphone did not stop cleanly")
		}
	})
}

func (m *CaptureManager) pump(rec *recording) {
	defer close(rec.pumpDone)

	buf := make([]byte, m.chunkSize)
	for {
		n, err := rec.stream.Read(buf)
		if n > 0 {
			rec.chunks = append(rec.chunks, append([]byte(nil), buf[:n]...))
			rec.size += int64(n)
		}
		if err == nil {
			continue
		}

		m.mu.Lock()
		abnormal := m.active == rec && !rec.stopping
		if abnormal {
			m.detachLocked()
		}
		m.mu.Unlock()

		if abnormal {
			log.Error().Err(err).Msg("microphone stream ended unexpectedly")
			m.release(rec)
			<-rec.tickDone
			m.notify(domain.RecordingState{ElapsedSeconds: rec.elapsed, Interrupted: true}, false)
		}
		return
	}
}

func (m *CaptureManager) tick(rec *recording) {
	defer close(rec.tickDone)

	t := m.newTicker(time.Second)
	defer t.Stop()

	for {
		select {
		case <-rec.tickStop:
			return
		case <-t.Chan():
			m.mu.Lock()
			if m.active != rec {
				m.mu.Unlock()
				return
			}
			rec.elapsed++
			state := domain.RecordingState{IsRecording: true, ElapsedSeconds: rec.elapsed}
			m.mu.Unlock()
			m.notify(state, true)
		}
	}
}

func (m *CaptureManager) notify(state domain.RecordingState, active bool) {
	m.mu.Lock()
	fn := m.listener
	m.mu.Unlock()
	if fn != nil {
		fn(state, active)
	}
}

func (r *recording) payload() domain.AudioPayload {
	data := make([]byte, 0, r.size)
	for _, chunk := range r.chunks {
		data = append(data, chunk...)
	}
	return domain.AudioPayload{
		Data:     data,
		MimeType: recordingMimeType,
		Name:     recordingName,
		Size:     int64(len(data)),
	}
}

func detectMimeType(path string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mimeType, ok := audioMimeTypes[ext]; ok {
		return mimeType
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
	}
	sniffed := http.DetectContentType(data)
	if mediaType, _, err := mime.ParseMediaType(sniffed); err == nil {
		return mediaType
	}
	return "application/octet-stream"
}
