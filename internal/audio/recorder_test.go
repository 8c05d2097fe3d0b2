package audio

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/modelpath-dev/TuroAISTT/internal/domain"
	"github.com/modelpath-dev/TuroAISTT/internal/ports"
)

func TestCaptureManagerRecordAndStop(t *testing.T) {
	t.Parallel()

	mic := &fakeMicrophone{}
	manager, tick, events := newTestManager(mic)
	mustSetMode(t, manager, domain.CaptureModeLiveRecord)

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if got := waitEvent(t, events); !got.active || got.state != (domain.RecordingState{IsRecording: true}) {
		t.Fatalf("unexpected start event: %+v", got)
	}

	stream := mic.last()
	stream.write(t, "abc")
	stream.write(t, "def")

	tick.fire()
	if got := waitEvent(t, events); got.state.ElapsedSeconds != 1 {
		t.Fatalf("expected elapsed 1, got %+v", got)
	}
	tick.fire()
	if got := waitEvent(t, events); got.state.ElapsedSeconds != 2 {
		t.Fatalf("expected elapsed 2, got %+v", got)
	}
	if state, ok := manager.Recording(); !ok || state.ElapsedSeconds != 2 {
		t.Fatalf("unexpected recording state: %+v ok=%v", state, ok)
	}

	payload, ok, err := manager.Stop()
	if err != nil || !ok {
		t.Fatalf("stop failed: ok=%v err=%v", ok, err)
	}
	if string(payload.Data) != "abcdef" {
		t.Fatalf("unexpected payload: %q", string(payload.Data))
	}
	if payload.MimeType != "audio/webm" || payload.Name != "recording.webm" || payload.Size != 6 {
		t.Fatalf("unexpected payload metadata: %+v", payload.Info())
	}
	if got := waitEvent(t, events); got.active {
		t.Fatalf("expected inactive event after stop, got %+v", got)
	}
	if _, ok := manager.Recording(); ok {
		t.Fatalf("expected recording state to be cleared")
	}
	if !tick.isStopped() {
		t.Fatalf("expected ticker to be stopped")
	}

	if _, ok, err := manager.Stop(); ok || err != nil {
		t.Fatalf("second stop should be a no-op: ok=%v err=%v", ok, err)
	}
	if got := stream.stopCount(); got != 1 {
		t.Fatalf("expected device released once, got %d", got)
	}
}

func TestCaptureManagerStartRequiresRecordMode(t *testing.T) {
	t.Parallel()

	mic := &fakeMicrophone{}
	manager, _, _ := newTestManager(mic)

	if err := manager.Start(context.Background()); !errors.Is(err, ErrWrongMode) {
		t.Fatalf("expected wrong mode error, got %v", err)
	}
	if mic.openCount() != 0 {
		t.Fatalf("microphone must not be opened in file mode")
	}
}

func TestCaptureManagerStartDeniedLeavesNoState(t *testing.T) {
	t.Parallel()

	mic := &fakeMicrophone{err: errors.New("device busy")}
	manager, _, events := newTestManager(mic)
	mustSetMode(t, manager, domain.CaptureModeLiveRecord)

	err := manager.Start(context.Background())
	if !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if _, ok := manager.Recording(); ok {
		t.Fatalf("expected no recording state")
	}
	select {
	case got := <-events:
		t.Fatalf("expected no listener event, got %+v", got)
	default:
	}
}

func TestCaptureManagerRejectsSecondStart(t *testing.T) {
	t.Parallel()

	mic := &fakeMicrophone{}
	manager, _, events := newTestManager(mic)
	mustSetMode(t, manager, domain.CaptureModeLiveRecord)

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitEvent(t, events)

	if err := manager.Start(context.Background()); !errors.Is(err, ErrRecordingActive) {
		t.Fatalf("expected active recording error, got %v", err)
	}
	if mic.openCount() != 1 {
		t.Fatalf("expected one open, got %d", mic.openCount())
	}
	manager.Abort()
}

func TestCaptureManagerAbortDiscardsAudio(t *testing.T) {
	t.Parallel()

	mic := &fakeMicrophone{}
	manager, _, events := newTestManager(mic)
	mustSetMode(t, manager, domain.CaptureModeLiveRecord)

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitEvent(t, events)
	mic.last().write(t, "discard-me")

	manager.Abort()
	if got := waitEvent(t, events); got.active || got.state != (domain.RecordingState{}) {
		t.Fatalf("unexpected abort event: %+v", got)
	}
	if _, ok, _ := manager.Stop(); ok {
		t.Fatalf("stop after abort must not produce a payload")
	}
	if got := mic.last().stopCount(); got != 1 {
		t.Fatalf("expected device released once, got %d", got)
	}
}

func TestCaptureManagerUnexpectedStreamEnd(t *testing.T) {
	t.Parallel()

	mic := &fakeMicrophone{}
	manager, tick, events := newTestManager(mic)
	mustSetMode(t, manager, domain.CaptureModeLiveRecord)

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitEvent(t, events)

	tick.fire()
	waitEvent(t, events)

	mic.last().fail(io.ErrUnexpectedEOF)
	got := waitEvent(t, events)
	if got.active || !got.state.Interrupted || got.state.ElapsedSeconds != 1 {
		t.Fatalf("expected interrupted inactive event after stream end, got %+v", got)
	}
	if _, ok := manager.Recording(); ok {
		t.Fatalf("expected recording state cleared")
	}
	if got := mic.last().stopCount(); got != 1 {
		t.Fatalf("expected device released once, got %d", got)
	}
	if !tick.isStopped() {
		t.Fatalf("expected ticker stopped")
	}
	if _, ok, _ := manager.Stop(); ok {
		t.Fatalf("stop after teardown must be a no-op")
	}
}

func TestCaptureManagerLeavingRecordModeAbandonsRecording(t *testing.T) {
	t.Parallel()

	mic := &fakeMicrophone{}
	manager, _, events := newTestManager(mic)
	mustSetMode(t, manager, domain.CaptureModeLiveRecord)

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitEvent(t, events)

	mustSetMode(t, manager, domain.CaptureModeFileSelect)
	if got := waitEvent(t, events); got.active || got.state.Interrupted {
		t.Fatalf("expected recording to be abandoned, got %+v", got)
	}
	if got := mic.last().stopCount(); got != 1 {
		t.Fatalf("expected device released once, got %d", got)
	}
}

func TestCaptureManagerStopWithoutAudio(t *testing.T) {
	t.Parallel()

	mic := &fakeMicrophone{}
	manager, _, events := newTestManager(mic)
	mustSetMode(t, manager, domain.CaptureModeLiveRecord)

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitEvent(t, events)

	_, ok, err := manager.Stop()
	if !ok || !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("expected empty audio error, got ok=%v err=%v", ok, err)
	}
}

func TestCaptureManagerSelectFile(t *testing.T) {
	t.Parallel()

	manager, _, _ := newTestManager(&fakeMicrophone{})
	path := filepath.Join(t.TempDir(), "dictation.wav")
	if err := os.WriteFile(path, []byte("RIFF....WAVE"), 0o600); err != nil {
		t.Fatalf("write audio file: %v", err)
	}

	payload, err := manager.SelectFile(path)
	if err != nil {
		t.Fatalf("select file failed: %v", err)
	}
	if payload.Name != "dictation.wav" || payload.MimeType != "audio/wav" || payload.Size != 12 {
		t.Fatalf("unexpected payload: %+v", payload.Info())
	}

	empty := filepath.Join(t.TempDir(), "empty.mp3")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatalf("write empty file: %v", err)
	}
	if _, err := manager.SelectFile(empty); !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("expected empty audio error, got %v", err)
	}

	mustSetMode(t, manager, domain.CaptureModeLiveRecord)
	if _, err := manager.SelectFile(path); !errors.Is(err, ErrWrongMode) {
		t.Fatalf("expected wrong mode error, got %v", err)
	}
}

func TestCaptureManagerRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	manager, _, _ := newTestManager(&fakeMicrophone{})
	if err := manager.SetMode("tape"); err == nil {
		t.Fatalf("expected unknown mode error")
	}
	if manager.Mode() != domain.CaptureModeFileSelect {
		t.Fatalf("mode must be unchanged, got %q", manager.Mode())
	}
}

func TestDetectMimeTypeFallsBackToSniffing(t *testing.T) {
	t.Parallel()

	got := detectMimeType("clip.unknownext", []byte("RIFF\x24\x00\x00\x00WAVEfmt "))
	if got != "audio/wave" {
		t.Fatalf("expected sniffed wave type, got %q", got)
	}
}

type recordingEvent struct {
	state  domain.RecordingState
	active bool
}

func newTestManager(mic *fakeMicrophone) (*CaptureManager, *fakeTicker, chan recordingEvent) {
	manager := NewCaptureManager(mic, ports.AudioConfig{})
	tick := &fakeTicker{ch: make(chan time.Time)}
	manager.newTicker = func(time.Duration) ticker { return tick }

	events := make(chan recordingEvent, 32)
	manager.SetListener(func(state domain.RecordingState, active bool) {
		events <- recordingEvent{state: state, active: active}
	})
	return manager, tick, events
}

func mustSetMode(t *testing.T, manager *CaptureManager, mode domain.CaptureMode) {
	t.Helper()
	if err := manager.SetMode(mode); err != nil {
		t.Fatalf("set mode failed: %v", err)
	}
}

func waitEvent(t *testing.T, events <-chan recordingEvent) recordingEvent {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for recording event")
		return recordingEvent{}
	}
}

type fakeMicrophone struct {
	mu      sync.Mutex
	err     error
	streams []*fakeStream
}

func (m *fakeMicrophone) Open(context.Context, ports.AudioConfig) (ports.MicrophoneStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	reader, writer := io.Pipe()
	stream := &fakeStream{reader: reader, writer: writer}
	m.streams = append(m.streams, stream)
	return stream, nil
}

func (m *fakeMicrophone) openCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}

func (m *fakeMicrophone) last() *fakeStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams[len(m.streams)-1]
}

type fakeStream struct {
	reader *io.PipeReader
	writer *io.PipeWriter

	mu    sync.Mutex
	stops int
}

func (s *fakeStream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *fakeStream) Close() error {
	return s.Stop()
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
	return s.writer.Close()
}

func (s *fakeStream) write(t *testing.T, data string) {
	t.Helper()
	if _, err := s.writer.Write([]byte(data)); err != nil {
		t.Fatalf("write to fake stream: %v", err)
	}
}

func (s *fakeStream) fail(err error) {
	_ = s.writer.CloseWithError(err)
}

func (s *fakeStream) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

type fakeTicker struct {
	ch chan time.Time

	mu      sync.Mutex
	stopped bool
}

func (f *fakeTicker) Chan() <-chan time.Time { return f.ch }

func (f *fakeTicker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeTicker) fire() {
	f.ch <- time.Now()
}

func (f *fakeTicker) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}
