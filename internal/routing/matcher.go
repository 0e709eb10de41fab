package routing

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/coachpo/beacon-spear-edge/internal/message"
)

// Matches evaluates the filter against a message. Every present dimension
// must pass; dimensions AND together and each failing one short-circuits.
func Matches(f *Filter, msg *message.Message) bool {
	if f == nil {
		return true
	}

	if f.IngestEndpointIDs != nil {
		if !containsString(f.IngestEndpointIDs, msg.IngestEndpointID) {
			return false
		}
	}

	if f.Body != nil {
		if !bodyContainsAny(f.Body.Contains, msg.Body) {
			return false
		}
		if !bodyMatchesRegex(f.Body.Regex, msg.Body) {
			return false
		}
	}

	if f.Priority != nil {
		p := msg.Priority
		if p == 0 {
			p = message.DefaultPriority
		}
		if min, ok := coerceBound(f.Priority.Min); ok && p < min {
			return false
		}
		if max, ok := coerceBound(f.Priority.Max); ok && p > max {
			return false
		}
	}

	if len(f.Tags) > 0 {
		if !tagsIntersect(f.Tags, msg.Tags) {
			return false
		}
	}

	if f.Group != nil {
		if msg.Group != *f.Group {
			return false
		}
	}

	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Needles are matched case-insensitively and OR together; blank needles are
// dropped, and an all-blank list imposes no constraint.
func bodyContainsAny(needles []string, body string) bool {
	if needles == nil {
		return true
	}
	hay := strings.ToLower(body)
	constrained := false
	for _, n := range needles {
		n = strings.ToLower(n)
		if strings.TrimSpace(n) == "" {
			continue
		}
		constrained = true
		if strings.Contains(hay, n) {
			return true
		}
	}
	return !constrained
}

// An invalid pattern fails closed for this rule only.
func bodyMatchesRegex(pattern, body string) bool {
	if strings.TrimSpace(pattern) == "" {
		return true
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return false
	}
	return re.MatchString(body)
}

func coerceBound(v interface{}) (int, bool) {
	switch b := v.(type) {
	case nil:
		return 0, false
	case float64:
		return int(b), true
	case int:
		return b, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(b))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func tagsIntersect(filterTags, msgTags []string) bool {
	if len(msgTags) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(msgTags))
	for _, t := range msgTags {
		set[strings.ToLower(t)] = struct{}{}
	}
	for _, t := range filterTags {
		if _, ok := set[strings.ToLower(t)]; ok {
			return true
		}
	}
	return false
}
