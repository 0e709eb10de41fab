package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/coachpo/beacon-spear-edge/internal/message"
)

// BuildBarkPushURL normalizes a bark server base URL to end in exactly one
// "/push" segment. Applying it to its own output is a no-op.
func BuildBarkPushURL(serverBaseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(serverBaseURL), "/")
	base = strings.TrimSuffix(base, "/push")
	return strings.TrimRight(base, "/") + "/push"
}

// BuildBarkPayload layers the push payload: channel defaults first, then the
// rendered template when it is a plain mapping, then body/title filled from
// the message when still unset, and finally device_key/device_keys forced
// from channel config.
func BuildBarkPayload(channelConfig map[string]interface{}, rendered interface{}, msg *message.Message) map[string]interface{} {
	payload := make(map[string]interface{})

	if defaults, ok := channelConfig["default_payload_json"].(map[string]interface{}); ok {
		for k, v := range defaults {
			payload[k] = v
		}
	}

	if m := asMap(rendered); m != nil {
		for k, v := range m {
			payload[k] = v
		}
	}

	if isBlank(payload["body"]) && msg.Body != "" {
		payload["body"] = msg.Body
	}
	if isBlank(payload["title"]) && msg.Title != "" {
		payload["title"] = msg.Title
	}

	if v, ok := channelConfig["device_key"]; ok && v != nil {
		payload["device_key"] = v
	}
	if v, ok := channelConfig["device_keys"]; ok && v != nil {
		payload["device_keys"] = v
	}

	return payload
}

// BuildBarkRequest assembles the outbound JSON POST for a bark channel.
func BuildBarkRequest(channelConfig map[string]interface{}, rendered interface{}, msg *message.Message) (*Request, error) {
	serverBaseURL := configString(channelConfig, "server_base_url")
	if serverBaseURL == "" {
		return nil, fmt.Errorf("missing_server_base_url")
	}

	payload := BuildBarkPayload(channelConfig, rendered, msg)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bark payload: %w", err)
	}

	headers := NewHeaderSet()
	headers.SetIfAbsent("Content-Type", "application/json")

	return &Request{
		URL:     BuildBarkPushURL(serverBaseURL),
		Method:  http.MethodPost,
		Headers: headers,
		Body:    body,
	}, nil
}

func isBlank(v interface{}) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return s == ""
	case bool:
		return !s
	case float64:
		return s == 0
	default:
		return false
	}
}
