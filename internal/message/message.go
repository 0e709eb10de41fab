// Package message defines the canonical normalized ingest payload and its
// schema validator.
package message

import (
	"time"

	"github.com/google/uuid"
)

const DefaultPriority = 3

// Message is constructed once per accepted ingest request and is read-only
// afterwards; matcher, renderer and dispatcher never mutate it.
type Message struct {
	ID         string
	ReceivedAt time.Time
	Body       string
	Title      string
	Group      string
	Priority   int
	Tags       []string
	URL        string
	Extras     map[string]string

	ContentType      string
	RemoteIP         string
	UserAgent        string
	Headers          map[string]string
	Query            map[string]string
	IngestEndpointID string
}

// RequestMeta carries the transport-level facts recorded on the message.
type RequestMeta struct {
	ContentType      string
	RemoteIP         string
	UserAgent        string
	Headers          map[string]string
	Query            map[string]string
	IngestEndpointID string
}

// New builds a Message from a validated payload, assigning a fresh id and
// receive timestamp and applying defaults.
func New(p *Payload, meta RequestMeta) *Message {
	priority := p.Priority
	if priority == 0 {
		priority = DefaultPriority
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	extras := p.Extras
	if extras == nil {
		extras = map[string]string{}
	}
	headers := meta.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	query := meta.Query
	if query == nil {
		query = map[string]string{}
	}

	return &Message{
		ID:               uuid.NewString(),
		ReceivedAt:       time.Now().UTC(),
		Body:             p.Body,
		Title:            p.Title,
		Group:            p.Group,
		Priority:         priority,
		Tags:             tags,
		URL:              p.URL,
		Extras:           extras,
		ContentType:      meta.ContentType,
		RemoteIP:         meta.RemoteIP,
		UserAgent:        meta.UserAgent,
		Headers:          headers,
		Query:            query,
		IngestEndpointID: meta.IngestEndpointID,
	}
}
