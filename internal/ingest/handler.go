// Package ingest implements lite-mode request termination: validation,
// message normalization, rule matching and channel fan-out.
package ingest

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coachpo/beacon-spear-edge/internal/dispatch"
	"github.com/coachpo/beacon-spear-edge/internal/guard"
	"github.com/coachpo/beacon-spear-edge/internal/httpapi"
	"github.com/coachpo/beacon-spear-edge/internal/logger"
	"github.com/coachpo/beacon-spear-edge/internal/message"
	"github.com/coachpo/beacon-spear-edge/internal/relay"
	"github.com/coachpo/beacon-spear-edge/internal/routing"
	"github.com/coachpo/beacon-spear-edge/pkg/metrics"
)

// Hard cap on the request body, enforced before JSON parsing.
const MaxBodyBytes = 1 << 20

type Handler struct {
	store      routing.Store
	dispatcher *dispatch.Dispatcher
	log        logger.Logger
}

func NewHandler(store routing.Store, dispatcher *dispatch.Dispatcher, log logger.Logger) *Handler {
	return &Handler{store: store, dispatcher: dispatcher, log: log}
}

// Response is the lite-mode success envelope.
type Response struct {
	MessageID    string            `json:"message_id"`
	MatchedRules int               `json:"matched_rules"`
	Dispatched   int               `json:"dispatched"`
	Results      []dispatch.Result `json:"results"`
}

// Handle terminates an ingest request locally. Gate order: content type,
// routing config, endpoint auth, body size, JSON parse, schema validation.
// Dispatch failures never fail the request; ingestion accepted means 201.
func (h *Handler) Handle(c *gin.Context) {
	endpointID := c.Param("endpoint_id")
	ctx := c.Request.Context()

	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(c.GetHeader("Content-Type"), ";", 2)[0]))
	if contentType != "application/json" {
		observe("415")
		httpapi.Error(c, http.StatusUnsupportedMediaType, httpapi.CodeUnsupportedMediaType,
			"Content-Type must be application/json")
		return
	}

	cfg, err := h.store.Load(ctx)
	if err != nil {
		h.log.Errorw("Routing config unavailable", "error", err)
		observe("500")
		httpapi.Misconfigured(c, "edge config not loaded")
		return
	}

	endpoint, found := cfg.FindEndpoint(endpointID)
	if !found {
		observe("401")
		httpapi.NotAuthenticated(c)
		return
	}

	key := strings.TrimSpace(c.GetHeader(relay.HeaderIngestKey))
	if !guard.ConstantTimeEqual(key, endpoint.TokenHash) {
		observe("401")
		httpapi.NotAuthenticated(c)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxBodyBytes+1))
	if err != nil {
		observe("400")
		httpapi.Error(c, http.StatusBadRequest, httpapi.CodeBadRequest, "failed to read body")
		return
	}
	if len(body) > MaxBodyBytes {
		observe("413")
		httpapi.Error(c, http.StatusRequestEntityTooLarge, httpapi.CodePayloadTooLarge, "max 1MB")
		return
	}

	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		observe("400")
		httpapi.Error(c, http.StatusBadRequest, httpapi.CodeBadRequest, "invalid JSON")
		return
	}

	obj, ok := decoded.(map[string]interface{})
	if !ok {
		observe("422")
		httpapi.Error(c, http.StatusUnprocessableEntity, httpapi.CodeValidationError, message.ReasonInvalidJSONObject)
		return
	}

	payload, reason := message.ValidatePayload(obj)
	if reason != "" {
		observe("422")
		httpapi.Error(c, http.StatusUnprocessableEntity, httpapi.CodeValidationError, reason)
		return
	}

	msg := message.New(payload, message.RequestMeta{
		ContentType:      contentType,
		RemoteIP:         remoteIP(c),
		UserAgent:        c.GetHeader("User-Agent"),
		Query:            flattenQuery(c),
		IngestEndpointID: endpoint.ID,
	})

	results, matched := h.dispatcher.Dispatch(ctx, cfg, endpoint, msg)

	h.log.Infow("Message ingested",
		"message_id", msg.ID,
		"endpoint_id", endpoint.ID,
		"matched_rules", matched,
		"dispatched", len(results),
	)
	observe("201")

	c.JSON(http.StatusCreated, Response{
		MessageID:    msg.ID,
		MatchedRules: matched,
		Dispatched:   len(results),
		Results:      results,
	})
}

func observe(status string) {
	metrics.IngestRequestsTotal.WithLabelValues("lite", status).Inc()
}

func remoteIP(c *gin.Context) string {
	if ip := c.GetHeader("CF-Connecting-IP"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

func flattenQuery(c *gin.Context) map[string]string {
	query := map[string]string{}
	for k, vs := range c.Request.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}
	return query
}
