package provider

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/coachpo/beacon-spear-edge/internal/message"
)

// Raised before any network access when the channel config is incomplete.
var (
	ErrMissingServerBaseURL = errors.New("missing_server_base_url")
	ErrMissingTopic         = errors.New("missing_topic")
)

var ntfyPriorityNames = map[int]string{
	1: "min",
	2: "low",
	3: "default",
	4: "high",
	5: "urgent",
}

// BuildNtfyRequest assembles an ntfy publish. Header assembly is strictly
// first-writer-wins: channel default headers are written first and are never
// overwritten by values derived from the rendered template or the message.
func BuildNtfyRequest(channelConfig map[string]interface{}, rendered interface{}, msg *message.Message) (*Request, error) {
	serverBaseURL := configString(channelConfig, "server_base_url")
	topic := configString(channelConfig, "topic")
	if serverBaseURL == "" {
		return nil, ErrMissingServerBaseURL
	}
	if topic == "" {
		return nil, ErrMissingTopic
	}

	url := strings.TrimRight(serverBaseURL, "/") + "/" + strings.TrimLeft(topic, "/")

	dict := asMap(rendered)
	if dict == nil {
		dict = map[string]interface{}{}
	}

	body := resolveBody(dict, msg)
	headers := NewHeaderSet()

	if defaults, ok := channelConfig["default_headers_json"].(map[string]interface{}); ok {
		for k, v := range defaults {
			key := strings.TrimSpace(k)
			if key == "" {
				continue
			}
			if value, ok := coerceHeaderValue(v); ok {
				headers.SetIfAbsent(key, value)
			}
		}
	}

	if title, ok := coerceHeaderValue(dict["title"]); ok {
		headers.SetIfAbsent("Title", title)
	} else if msg.Title != "" {
		headers.SetIfAbsent("Title", msg.Title)
	}

	setTags(headers, dict, msg)
	setPriority(headers, dict, msg)

	for _, key := range []string{"click", "icon", "attach"} {
		if v, ok := coerceHeaderValue(dict[key]); ok {
			headers.SetIfAbsent(http.CanonicalHeaderKey(key), v)
		}
	}

	if md, ok := dict["markdown"].(bool); ok && md {
		headers.SetIfAbsent("Markdown", "true")
	}

	if token := configString(channelConfig, "access_token"); token != "" {
		headers.SetIfAbsent("Authorization", "Bearer "+token)
	} else {
		username := configString(channelConfig, "username")
		password := configString(channelConfig, "password")
		if username != "" && password != "" {
			cred := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
			headers.SetIfAbsent("Authorization", "Basic "+cred)
		}
	}

	return &Request{
		URL:     url,
		Method:  http.MethodPost,
		Headers: headers,
		Body:    []byte(body),
	}, nil
}

// Body resolution order: rendered body, message, text; a value that coerces
// to nothing falls through to the ingest message body, else empty.
func resolveBody(dict map[string]interface{}, msg *message.Message) string {
	for _, key := range []string{"body", "message", "text"} {
		if v, present := dict[key]; present && v != nil {
			if s, ok := coerceHeaderValue(v); ok {
				return s
			}
			break
		}
	}
	return msg.Body
}

func setTags(headers *HeaderSet, dict map[string]interface{}, msg *message.Message) {
	if list, ok := dict["tags"].([]interface{}); ok {
		if joined := joinTags(list); joined != "" {
			headers.SetIfAbsent("Tags", joined)
		}
		return
	}
	if v, ok := coerceHeaderValue(dict["tags"]); ok {
		headers.SetIfAbsent("Tags", v)
		return
	}
	if len(msg.Tags) > 0 {
		parts := make([]interface{}, len(msg.Tags))
		for i, t := range msg.Tags {
			parts[i] = t
		}
		if joined := joinTags(parts); joined != "" {
			headers.SetIfAbsent("Tags", joined)
		}
	}
}

func joinTags(list []interface{}) string {
	var parts []string
	for _, t := range list {
		if s, ok := coerceHeaderValue(t); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ",")
}

// An explicit rendered priority wins; otherwise only a non-default message
// priority is mapped onto the ntfy level names.
func setPriority(headers *HeaderSet, dict map[string]interface{}, msg *message.Message) {
	if v, ok := coerceHeaderValue(dict["priority"]); ok {
		headers.SetIfAbsent("Priority", v)
		return
	}
	if msg.Priority != 0 && msg.Priority != message.DefaultPriority {
		if name, ok := ntfyPriorityNames[msg.Priority]; ok {
			headers.SetIfAbsent("Priority", name)
		}
	}
}
