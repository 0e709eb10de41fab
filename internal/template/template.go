// Package template renders `{{ dotted.path }}` tokens inside JSON-shaped
// payload templates against a per-message context.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/coachpo/beacon-spear-edge/internal/message"
	"github.com/coachpo/beacon-spear-edge/internal/routing"
)

var tokenRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Render walks the template value recursively: strings get token
// substitution, sequences and mappings are rendered element-wise preserving
// shape, every other scalar passes through unchanged.
func Render(value interface{}, ctx map[string]interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return renderString(v, ctx)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = Render(e, ctx)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, e := range v {
			out[k] = Render(e, ctx)
		}
		return out
	default:
		return value
	}
}

func renderString(s string, ctx map[string]interface{}) string {
	return tokenRe.ReplaceAllStringFunc(s, func(tok string) string {
		path := tokenRe.FindStringSubmatch(tok)[1]
		val, ok := lookup(path, ctx)
		if !ok || val == nil {
			return ""
		}
		return Stringify(val)
	})
}

// A missing step anywhere along the path resolves to nothing.
func lookup(path string, ctx map[string]interface{}) (interface{}, bool) {
	var cur interface{} = ctx
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Stringify renders a scalar the way it would appear in the original JSON
// text: numbers without a trailing ".0", booleans lowercase, nil empty.
func Stringify(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		if s {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

// BuildContext assembles the render context for one (message, endpoint)
// pair: a stringified message view, the request metadata view, and the
// resolved ingest endpoint view.
func BuildContext(msg *message.Message, ep routing.Endpoint) map[string]interface{} {
	extras := make(map[string]interface{}, len(msg.Extras))
	for k, v := range msg.Extras {
		extras[k] = v
	}
	headers := make(map[string]interface{}, len(msg.Headers))
	for k, v := range msg.Headers {
		headers[k] = v
	}
	query := make(map[string]interface{}, len(msg.Query))
	for k, v := range msg.Query {
		query[k] = v
	}

	receivedAt := ""
	if !msg.ReceivedAt.IsZero() {
		receivedAt = msg.ReceivedAt.Format("2006-01-02T15:04:05.000Z07:00")
	}

	return map[string]interface{}{
		"message": map[string]interface{}{
			"id":          msg.ID,
			"received_at": receivedAt,
			"title":       msg.Title,
			"body":        msg.Body,
			"group":       msg.Group,
			"priority":    strconv.Itoa(msg.Priority),
			"tags":        strings.Join(msg.Tags, ","),
			"url":         msg.URL,
			"extras":      extras,
		},
		"request": map[string]interface{}{
			"content_type": msg.ContentType,
			"remote_ip":    msg.RemoteIP,
			"user_agent":   msg.UserAgent,
			"headers":      headers,
			"query":        query,
		},
		"ingest_endpoint": map[string]interface{}{
			"id":   ep.ID,
			"name": ep.Name,
		},
	}
}
