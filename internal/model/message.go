package model

import (
	"errors"
	"time"
)

// ErrTextRequired is returned when a message is submitted without text.
var ErrTextRequired = errors.New("text is required")

// Message represents a note on the board
type Message struct {
	ID         int64      `json:"id"`
	Text       string     `json:"text"`
	FontColor  *string    `json:"font_color"`
	FontFamily *string    `json:"font_family"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// IsExpired reports whether the message has an expiry at or before now.
// Messages without an expiry never expire.
func (m Message) IsExpired(now time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(now)
}

// Expire moves an active message to the expired state.
// An already-expired message keeps its original expiry.
// The soft-delete UPDATE in the repository applies the same rule in SQL.
func (m *Message) Expire(now time.Time) {
	if m.IsExpired(now) {
		return
	}
	t := now
	m.ExpiresAt = &t
}

// NewMessage is the payload accepted by POST /messages.
// id と created_at はサーバー側で付与するのでここには持たない
type NewMessage struct {
	Text       string     `json:"text"`
	FontColor  *string    `json:"font_color,omitempty"`
	FontFamily *string    `json:"font_family,omitempty"`
	ExpiresAt  *Timestamp `json:"expires_at,omitempty"`
}

// Expiry returns the requested expiry, or nil when none was sent.
func (n NewMessage) Expiry() *time.Time {
	if n.ExpiresAt == nil {
		return nil
	}
	t := n.ExpiresAt.Time
	return &t
}

// Validate checks the fields a client must supply.
func (n NewMessage) Validate() error {
	if n.Text == "" {
		return ErrTextRequired
	}
	return nil
}

// Source tells where the body of a create response came from.
type Source string

const (
	// SourceStored means the row was read back after insert.
	SourceStored Source = "stored"
	// SourceEchoed means the read-back failed and the submitted payload is returned instead.
	SourceEchoed Source = "echoed"
)

// CreateResult is the outcome of creating a message.
type CreateResult struct {
	Message Message
	Source  Source
	// ReadErr holds the read-back failure when Source is SourceEchoed.
	ReadErr error
}

// ListQuery holds the filters for listing messages.
type ListQuery struct {
	Count          int
	SinceID        int64
	IncludeExpired bool
}

// Default list parameters
const (
	DefaultListCount   = 20
	DefaultListSinceID = 0
)

// DefaultListQuery returns the filters used when a client sends none.
func DefaultListQuery() ListQuery {
	return ListQuery{
		Count:   DefaultListCount,
		SinceID: DefaultListSinceID,
	}
}
