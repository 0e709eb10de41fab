package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePayloadAccepts(t *testing.T) {
	p, reason := ValidatePayload(map[string]interface{}{
		"body":     "disk full",
		"title":    "alert",
		"group":    "ops",
		"priority": float64(4),
		"tags":     []interface{}{"urgent", float64(2)},
		"url":      "https://example.com",
		"extras":   map[string]interface{}{"host": "web-1", "count": float64(3)},
	})
	require.Empty(t, reason)

	assert.Equal(t, "disk full", p.Body)
	assert.Equal(t, "alert", p.Title)
	assert.Equal(t, "ops", p.Group)
	assert.Equal(t, 4, p.Priority)
	assert.Equal(t, []string{"urgent", "2"}, p.Tags)
	assert.Equal(t, map[string]string{"host": "web-1", "count": "3"}, p.Extras)
}

func TestValidatePayloadRejects(t *testing.T) {
	tests := []struct {
		name   string
		raw    map[string]interface{}
		reason string
	}{
		{
			name:   "unknown field",
			raw:    map[string]interface{}{"body": "x", "unknown_field": float64(1)},
			reason: "unknown_field:unknown_field",
		},
		{
			name:   "missing body",
			raw:    map[string]interface{}{"title": "no body"},
			reason: ReasonMissingBody,
		},
		{
			name:   "blank body",
			raw:    map[string]interface{}{"body": "   "},
			reason: ReasonMissingBody,
		},
		{
			name:   "non-string body",
			raw:    map[string]interface{}{"body": float64(1)},
			reason: ReasonMissingBody,
		},
		{
			name:   "non-string title",
			raw:    map[string]interface{}{"body": "x", "title": float64(1)},
			reason: ReasonInvalidTitle,
		},
		{
			name:   "non-string group",
			raw:    map[string]interface{}{"body": "x", "group": true},
			reason: ReasonInvalidGroup,
		},
		{
			name:   "priority out of range",
			raw:    map[string]interface{}{"body": "x", "priority": float64(6)},
			reason: ReasonInvalidPriority,
		},
		{
			name:   "priority zero",
			raw:    map[string]interface{}{"body": "x", "priority": float64(0)},
			reason: ReasonInvalidPriority,
		},
		{
			name:   "fractional priority",
			raw:    map[string]interface{}{"body": "x", "priority": 3.5},
			reason: ReasonInvalidPriority,
		},
		{
			name:   "non-numeric priority string",
			raw:    map[string]interface{}{"body": "x", "priority": "high"},
			reason: ReasonInvalidPriority,
		},
		{
			name:   "tags not a sequence",
			raw:    map[string]interface{}{"body": "x", "tags": "urgent"},
			reason: ReasonInvalidTags,
		},
		{
			name:   "non-string url",
			raw:    map[string]interface{}{"body": "x", "url": float64(1)},
			reason: ReasonInvalidURL,
		},
		{
			name:   "extras is a sequence",
			raw:    map[string]interface{}{"body": "x", "extras": []interface{}{"a"}},
			reason: ReasonInvalidExtras,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, reason := ValidatePayload(tt.raw)
			assert.Nil(t, p)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestValidatePayloadNumericStringPriority(t *testing.T) {
	p, reason := ValidatePayload(map[string]interface{}{"body": "x", "priority": "4"})
	require.Empty(t, reason)
	assert.Equal(t, 4, p.Priority)
}

func TestNewAppliesDefaults(t *testing.T) {
	msg := New(&Payload{Body: "hello"}, RequestMeta{IngestEndpointID: "ep-1"})

	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.ReceivedAt.IsZero())
	assert.Equal(t, DefaultPriority, msg.Priority)
	assert.NotNil(t, msg.Tags)
	assert.Empty(t, msg.Tags)
	assert.NotNil(t, msg.Extras)
	assert.NotNil(t, msg.Headers)
	assert.NotNil(t, msg.Query)
	assert.Equal(t, "ep-1", msg.IngestEndpointID)
}

func TestNewAssignsUniqueIDs(t *testing.T) {
	a := New(&Payload{Body: "x"}, RequestMeta{})
	b := New(&Payload{Body: "x"}, RequestMeta{})
	assert.NotEqual(t, a.ID, b.ID)
}
