package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/modelpath-dev/TuroAISTT/internal/domain"
	"github.com/modelpath-dev/TuroAISTT/internal/ports"
)

const (
	recordingMimeType = "audio/webm"
	recordingName     = "recording.webm"
)

// FFMPEGMicrophone records the input device as Opus/WebM using ffmpeg.
type FFMPEGMicrophone struct {
	command     string
	startupWait time.Duration
	stopWait    time.Duration
}

func NewFFMPEGMicrophone(command string) *FFMPEGMicrophone {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGMicrophone{
		command:     command,
		startupWait: 250 * time.Millisecond,
		stopWait:    1200 * time.Millisecond,
	}
}

// Open starts ffmpeg on the configured device. Any failure to acquire the
// device is reported as domain.ErrPermission.
func (m *FFMPEGMicrophone) Open(ctx context.Context, cfg ports.AudioConfig) (ports.MicrophoneStream, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-c:a", "libopus",
		"-f", "webm",
		"-",
	}

	reader, writer := io.Pipe()
	cmd := exec.CommandContext(ctx, m.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = writer
	cmd.WaitDelay = m.stopWait

	if err := cmd.Start(); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("%w: failed to start %s: %v", domain.ErrPermission, m.command, err)
	}

	// Wait returns only after ffmpeg's stdout has been fully copied into the
	// pipe, so closing the writer afterwards hands the reader a clean EOF.
	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = writer.Close()
		waitErr <- err
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		_ = reader.Close()
		detail := stringsTrimSpaceSafe(stderr.String())
		if err != nil {
			return nil, fmt.Errorf("%w: recorder exited before capture started: %v: %s", domain.ErrPermission, err, detail)
		}
		return nil, fmt.Errorf("%w: recorder exited before capture started", domain.ErrPermission)
	case <-time.After(m.startupWait):
	}

	return &ffmpegStream{
		reader:   reader,
		stderr:   &stderr,
		process:  cmd.Process,
		waitErr:  waitErr,
		stopWait: m.stopWait,
	}, nil
}

type ffmpegStream struct {
	reader *io.PipeReader
	stderr *bytes.Buffer

	process  *os.Process
	waitErr  <-chan error
	stopWait time.Duration

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *ffmpegStream) Close() error {
	return s.Stop()
}

// Stop asks ffmpeg to finalize the container and releases the device. It is
// safe to call more than once; only the first call has an effect.
func (s *ffmpegStream) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(s.stopWait):
			if s.process != nil {
				_ = s.process.Kill()
			}
			// Unblock the copy goroutine if nobody is draining the pipe.
			_ = s.reader.CloseWithError(io.ErrClosedPipe)
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, stringsTrimSpaceSafe(s.stderr.String()))
		}
	})

	return s.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, exec.ErrWaitDelay) {
		return nil
	}
	return err
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
