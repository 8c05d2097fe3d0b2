package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/modelpath-dev/TuroAISTT/internal/domain"
	"github.com/modelpath-dev/TuroAISTT/internal/ports"
)

const (
	// ErrorNotice replaces the reply when the assistant cannot be reached.
	ErrorNotice = "Error communicating with Assistant."
	// Greeting is shown while the conversation is empty.
	Greeting = "Hello! I have analyzed the transcript. Ask me anything about the findings or the protocol."
)

var ErrReplyPending = errors.New("assistant reply pending")

// Sidecar is the assistant conversation attached to one session. It reads the
// session context it is given and never changes it.
type Sidecar struct {
	backend ports.ChatBackend

	mu         sync.Mutex
	messages   []domain.ChatMessage
	loading    bool
	generation uint64
	onChange   func()
}

func NewSidecar(backend ports.ChatBackend) *Sidecar {
	return &Sidecar{backend: backend}
}

// SetListener registers a callback invoked after every change.
func (s *Sidecar) SetListener(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Send posts one user turn and appends exactly one reply or error message.
// Whitespace-only input is ignored and reports sent=false. The history sent
// with the turn is every message before it.
func (s *Sidecar) Send(ctx context.Context, message string, chatCtx domain.ChatContext) (bool, error) {
	if strings.TrimSpace(message) == "" {
		return false, nil
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return false, ErrReplyPending
	}
	history := append([]domain.ChatMessage(nil), s.messages...)
	s.messages = append(s.messages, domain.ChatMessage{Role: domain.ChatRoleUser, Content: message})
	s.loading = true
	generation := s.generation
	s.mu.Unlock()
	s.changed()

	reply, err := s.backend.Chat(ctx, domain.ChatRequest{
		Message: message,
		Context: chatCtx,
		History: history,
	})

	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		log.Debug().Msg("dropping chat reply for a reset conversation")
		return true, nil
	}
	if err != nil {
		log.Error().Err(err).Msg("chat request failed")
		s.messages = append(s.messages, domain.ChatMessage{Role: domain.ChatRoleError, Content: ErrorNotice})
	} else {
		s.messages = append(s.messages, domain.ChatMessage{Role: domain.ChatRoleAssistant, Content: reply})
	}
	s.loading = false
	s.mu.Unlock()
	s.changed()

	return true, nil
}

// Messages returns a copy of the conversation.
func (s *Sidecar) Messages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatMessage(nil), s.messages...)
}

func (s *Sidecar) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Reset clears the conversation. A reply still in flight is discarded.
func (s *Sidecar) Reset() {
	s.mu.Lock()
	s.messages = nil
	s.loading = false
	s.generation++
	s.mu.Unlock()
	s.changed()
}

func (s *Sidecar) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
