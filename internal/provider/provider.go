// Package provider builds provider-specific push requests from a rendered
// payload template, a channel config and the ingest message.
package provider

import (
	"fmt"
	"strconv"
	"strings"
)

// Request is a fully built outbound push request, ready for a transport.
type Request struct {
	URL     string
	Method  string
	Headers *HeaderSet
	Body    []byte
}

// HeaderSet is an ordered insert-if-absent mapping: the first writer of a
// key wins, later writes of the same key are dropped.
type HeaderSet struct {
	keys   []string
	values map[string]string
}

func NewHeaderSet() *HeaderSet {
	return &HeaderSet{values: make(map[string]string)}
}

func (h *HeaderSet) SetIfAbsent(key, value string) {
	if _, exists := h.values[key]; exists {
		return
	}
	h.keys = append(h.keys, key)
	h.values[key] = value
}

func (h *HeaderSet) Get(key string) (string, bool) {
	v, ok := h.values[key]
	return v, ok
}

func (h *HeaderSet) Len() int {
	return len(h.keys)
}

// Each visits headers in insertion order.
func (h *HeaderSet) Each(fn func(key, value string)) {
	for _, k := range h.keys {
		fn(k, h.values[k])
	}
}

// asMap narrows a rendered template to a plain mapping; arrays and scalars
// yield nil.
func asMap(rendered interface{}) map[string]interface{} {
	m, _ := rendered.(map[string]interface{})
	return m
}

func configString(cfg map[string]interface{}, key string) string {
	if cfg == nil {
		return ""
	}
	s, _ := cfg[key].(string)
	return strings.TrimSpace(s)
}

// coerceHeaderValue turns a rendered value into a header string. Nil and
// blank strings coerce to nothing; booleans and numbers take their JSON
// text form.
func coerceHeaderValue(v interface{}) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case bool:
		if s {
			return "true", true
		}
		return "false", true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case string:
		t := strings.TrimSpace(s)
		if t == "" {
			return "", false
		}
		return t, true
	default:
		return fmt.Sprintf("%v", s), true
	}
}
