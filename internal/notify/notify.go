// Package notify carries short user-visible messages (toasts) from the core
// to whichever surface is showing them.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Notification struct {
	Recipient string    `json:"-"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Success and Error are shorthands that stamp the time.
func Success(ctx context.Context, to Notifier, recipient, msg string) {
	to.Notify(ctx, Notification{Recipient: recipient, Level: LevelSuccess, Message: msg, At: time.Now()})
}

func Error(ctx context.Context, to Notifier, recipient, msg string) {
	to.Notify(ctx, Notification{Recipient: recipient, Level: LevelError, Message: msg, At: time.Now()})
}

// Inbox keeps the most recent notifications per recipient until drained.
type Inbox struct {
	limit int

	mu    sync.Mutex
	boxes map[string][]Notification
}

// NewInbox returns an Inbox holding at most limit entries per recipient
// (oldest dropped first). limit <= 0 selects 50.
func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = 50
	}
	return &Inbox{limit: limit, boxes: make(map[string][]Notification)}
}

func (b *Inbox) Notify(_ context.Context, n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	box := append(b.boxes[n.Recipient], n)
	if over := len(box) - b.limit; over > 0 {
		box = append([]Notification(nil), box[over:]...)
	}
	b.boxes[n.Recipient] = box
}

// Drain returns and forgets everything queued for recipient, oldest first.
func (b *Inbox) Drain(recipient string) []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	box := b.boxes[recipient]
	delete(b.boxes, recipient)
	if box == nil {
		return []Notification{}
	}
	return box
}

// Peek returns a copy of the queue without draining it.
func (b *Inbox) Peek(recipient string) []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Notification{}, b.boxes[recipient]...)
}

// LogNotifier mirrors notifications into a structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "notification", "recipient", n.Recipient, "level", string(n.Level), "message", n.Message)
}

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, to := range m {
		to.Notify(ctx, n)
	}
}
