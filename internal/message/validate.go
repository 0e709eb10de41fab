package message

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Validation failure reasons surfaced in 422 responses.
const (
	ReasonInvalidJSONObject = "invalid_json_object"
	ReasonMissingBody       = "missing_body"
	ReasonInvalidTitle      = "invalid_title"
	ReasonInvalidGroup      = "invalid_group"
	ReasonInvalidPriority   = "invalid_priority"
	ReasonInvalidTags       = "invalid_tags"
	ReasonInvalidURL        = "invalid_url"
	ReasonInvalidExtras     = "invalid_extras"
)

var allowedFields = map[string]struct{}{
	"body": {}, "title": {}, "group": {}, "priority": {},
	"tags": {}, "url": {}, "extras": {},
}

// Payload is the validated subset of an ingest request body.
type Payload struct {
	Body     string
	Title    string
	Group    string
	Priority int
	Tags     []string
	URL      string
	Extras   map[string]string
}

// ValidatePayload checks the decoded JSON object against the ingest schema.
// It returns either a payload or a machine-readable failure reason; it never
// returns both, and it does not panic on any input shape.
func ValidatePayload(raw map[string]interface{}) (*Payload, string) {
	for key := range raw {
		if _, ok := allowedFields[key]; !ok {
			return nil, fmt.Sprintf("unknown_field:%s", key)
		}
	}

	body, ok := raw["body"].(string)
	if !ok || strings.TrimSpace(body) == "" {
		return nil, ReasonMissingBody
	}

	p := &Payload{Body: body}

	if v, present := raw["title"]; present && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, ReasonInvalidTitle
		}
		p.Title = s
	}

	if v, present := raw["group"]; present && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, ReasonInvalidGroup
		}
		p.Group = s
	}

	if v, present := raw["priority"]; present && v != nil {
		n, ok := coercePriority(v)
		if !ok || n < 1 || n > 5 {
			return nil, ReasonInvalidPriority
		}
		p.Priority = n
	}

	if v, present := raw["tags"]; present && v != nil {
		list, ok := v.([]interface{})
		if !ok {
			return nil, ReasonInvalidTags
		}
		tags := make([]string, 0, len(list))
		for _, t := range list {
			tags = append(tags, stringifyScalar(t))
		}
		p.Tags = tags
	}

	if v, present := raw["url"]; present && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, ReasonInvalidURL
		}
		p.URL = s
	}

	if v, present := raw["extras"]; present && v != nil {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, ReasonInvalidExtras
		}
		extras := make(map[string]string, len(m))
		for k, ev := range m {
			extras[k] = stringifyScalar(ev)
		}
		p.Extras = extras
	}

	return p, ""
}

// Accepts JSON numbers and numeric strings, rejecting non-integral values.
func coercePriority(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func stringifyScalar(v interface{}) string {
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
	default:
		return fmt.Sprintf("%v", s)
	}
}
