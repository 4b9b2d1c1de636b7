// Package chat holds the per-workspace conversation state: the active
// domain, the append-only transcript and the single in-flight request.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/kalambet/healthdesk/internal/backend"
	"github.com/kalambet/healthdesk/internal/notify"
)

// Service answers chat requests. Implemented by backend.Client.
type Service interface {
	Chat(ctx context.Context, req backend.ChatRequest) (string, error)
}

// Session is one open conversation view. It is safe for concurrent use;
// at most one request is outstanding at a time and overlapping sends are
// dropped, not queued.
type Session struct {
	workspaceID string
	owner       string
	service     Service
	notifier    notify.Notifier
	logger      *slog.Logger

	mu           sync.Mutex
	domain       Domain
	selectorOpen bool
	messages     []Message
	pending      bool
}

// NewSession starts a session with the greeting as its only message, the
// general domain active and the domain selector open. owner is the
// notification recipient.
func NewSession(workspaceID, owner string, service Service, notifier notify.Notifier) *Session {
	return &Session{
		workspaceID:  workspaceID,
		owner:        owner,
		service:      service,
		notifier:     notifier,
		logger:       slog.Default(),
		domain:       General,
		selectorOpen: true,
		messages:     []Message{Greeting()},
	}
}

func (s *Session) WorkspaceID() string { return s.workspaceID }

// SelectDomain makes d active and collapses the selector.
func (s *Session) SelectDomain(d Domain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domain = d
	s.selectorOpen = false
}

// OpenSelector re-opens the domain selector; the active domain is kept.
func (s *Session) OpenSelector() {
	s.mu.Lock()
	s.selectorOpen = true
	s.mu.Unlock()
}

func (s *Session) Domain() Domain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.domain
}

func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Result is what one accepted request produced. Err is set when Reply is
// the apology.
type Result struct {
	Reply Message
	Err   error
}

// Send submits text in the active domain and blocks until the answer (or
// the apology) is in the transcript. It returns false without doing
// anything when text is blank or another request is still pending.
func (s *Session) Send(ctx context.Context, text string) bool {
	_, ok := s.Ask(ctx, text)
	return ok
}

// Ask is Send that also returns the bot message it appended. Cancelling
// ctx does not abort a request once it is accepted; the transport timeout
// bounds it instead.
func (s *Session) Ask(ctx context.Context, text string) (Result, bool) {
	if strings.TrimSpace(text) == "" {
		return Result{}, false
	}

	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return Result{}, false
	}
	s.messages = append(s.messages, Message{Role: User, Content: text})
	s.pending = true
	domain := s.domain
	s.mu.Unlock()

	// Clearing pending is always the last step.
	defer func() {
		s.mu.Lock()
		s.pending = false
		s.mu.Unlock()
	}()

	ctx = context.WithoutCancel(ctx)
	reply, err := s.service.Chat(ctx, backend.ChatRequest{
		Message:     text,
		WorkspaceID: s.workspaceID,
		Domain:      domain.String(),
	})

	res := Result{Reply: Message{Role: Bot, Content: reply}, Err: err}
	if err != nil {
		res.Reply = Apology()
	}
	s.mu.Lock()
	s.messages = append(s.messages, res.Reply)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("chat request failed",
			"workspace_id", s.workspaceID,
			"domain", domain.String(),
			"error", err,
		)
		if s.notifier != nil {
			notify.Error(ctx, s.notifier, s.owner, FailureNotice)
		}
	}
	return res, true
}

// Snapshot is a consistent read of the whole session.
type Snapshot struct {
	WorkspaceID  string    `json:"workspace_id"`
	Domain       Domain    `json:"domain"`
	DomainTitle  string    `json:"domain_title"`
	Hint         string    `json:"hint"`
	SelectorOpen bool      `json:"selector_open"`
	Pending      bool      `json:"pending"`
	Messages     []Message `json:"messages"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		WorkspaceID:  s.workspaceID,
		Domain:       s.domain,
		DomainTitle:  s.domain.Title(),
		Hint:         s.domain.Hint(),
		SelectorOpen: s.selectorOpen,
		Pending:      s.pending,
		Messages:     append([]Message(nil), s.messages...),
	}
}
