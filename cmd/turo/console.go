package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/modelpath-dev/TuroAISTT/internal/domain"
)

// consoleSink prints controller events for the non-interactive commands.
type consoleSink struct {
	mu      sync.Mutex
	out     io.Writer
	elapsed int
	loading bool
}

func newConsoleSink(out io.Writer) *consoleSink {
	return &consoleSink{out: out}
}

func (s *consoleSink) SnapshotChanged(snapshot domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snapshot.Recording != nil && snapshot.Recording.ElapsedSeconds != s.elapsed {
		s.elapsed = snapshot.Recording.ElapsedSeconds
		fmt.Fprintf(s.out, "\rRecording %d:%02d", s.elapsed/60, s.elapsed%60)
	}
	if snapshot.Recording == nil && s.elapsed > 0 {
		fmt.Fprintln(s.out)
		s.elapsed = 0
	}

	if snapshot.Loading && !s.loading {
		switch snapshot.Step {
		case domain.StepIntake:
			fmt.Fprintln(s.out, "Processing with AI...")
		case domain.StepVerification:
			fmt.Fprintln(s.out, "Generating report...")
		}
	}
	s.loading = snapshot.Loading
}

func (s *consoleSink) SessionError(code domain.ErrorCode, notice string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "Error (%s): %s\n", code, notice)
}
