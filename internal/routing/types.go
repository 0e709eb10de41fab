// Package routing holds the per-request routing configuration snapshot and
// the rule matcher evaluated against ingest messages.
package routing

import "strings"

// Channel provider types.
const (
	ChannelTypeBark = "bark"
	ChannelTypeNtfy = "ntfy"
)

// Config is the collaborator-supplied routing snapshot. It is fetched once
// per request and must not be mutated afterwards.
type Config struct {
	IngestEndpoints []Endpoint `json:"ingest_endpoints"`
	Channels        []Channel  `json:"channels"`
	Rules           []Rule     `json:"rules"`
	Version         string     `json:"version"`
}

type Endpoint struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TokenHash string `json:"token_hash"`
}

type Channel struct {
	ID     string                 `json:"id"`
	Type   string                 `json:"type"`
	Name   string                 `json:"name"`
	Config map[string]interface{} `json:"config"`
}

type Rule struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Filter          *Filter     `json:"filter"`
	ChannelID       string      `json:"channel_id"`
	PayloadTemplate interface{} `json:"payload_template"`
}

// Filter is a declarative AND-of-dimensions predicate. A nil dimension means
// that dimension always passes; a nil Filter matches every message.
type Filter struct {
	IngestEndpointIDs []string        `json:"ingest_endpoint_ids,omitempty"`
	Body              *BodyFilter     `json:"body,omitempty"`
	Priority          *PriorityFilter `json:"priority,omitempty"`
	Tags              []string        `json:"tags,omitempty"`
	Group             *string         `json:"group,omitempty"`
}

type BodyFilter struct {
	Contains []string `json:"contains,omitempty"`
	Regex    string   `json:"regex,omitempty"`
}

// Bounds are loosely typed on purpose: config JSON may carry them as numbers
// or numeric strings, and non-numeric values must be ignored.
type PriorityFilter struct {
	Min interface{} `json:"min,omitempty"`
	Max interface{} `json:"max,omitempty"`
}

// FindEndpoint resolves an endpoint by id, comparing with separator dashes
// stripped so that hyphenated and compact UUID forms identify the same
// endpoint. Case remains significant.
func (c *Config) FindEndpoint(id string) (Endpoint, bool) {
	want := strings.ReplaceAll(id, "-", "")
	for _, ep := range c.IngestEndpoints {
		if strings.ReplaceAll(ep.ID, "-", "") == want {
			return ep, true
		}
	}
	return Endpoint{}, false
}

// ChannelMap indexes channels by id for dispatch resolution.
func (c *Config) ChannelMap() map[string]Channel {
	m := make(map[string]Channel, len(c.Channels))
	for _, ch := range c.Channels {
		m[ch.ID] = ch
	}
	return m
}
