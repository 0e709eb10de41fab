// Package relay implements full-mode forwarding to the upstream ingest
// processor.
package relay

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coachpo/beacon-spear-edge/internal/config"
	"github.com/coachpo/beacon-spear-edge/internal/guard"
	"github.com/coachpo/beacon-spear-edge/internal/httpapi"
	"github.com/coachpo/beacon-spear-edge/internal/logger"
	"github.com/coachpo/beacon-spear-edge/pkg/metrics"
)

// Headers the edge chain uses to authenticate and bound itself.
const (
	HeaderIngestKey    = "X-Beacon-Ingest-Key"
	HeaderEdgeHop      = "X-Beacon-Edge-Hop"
	HeaderEdgeName     = "X-Beacon-Edge-Name"
	HeaderEdgeClientIP = "X-Beacon-Edge-Client-IP"
)

// Inbound headers copied to the upstream request. Everything else is
// dropped; the forced edge headers are set separately.
var forwardedHeaders = []string{"Content-Type", "User-Agent", "Accept"}

type Relay struct {
	cfg    *config.Config
	client *http.Client
	log    logger.Logger
}

func New(cfg *config.Config, log logger.Logger) *Relay {
	return &Relay{
		cfg: cfg,
		// Redirects from upstream are handed back to the caller untouched.
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log: log,
	}
}

// Handle authenticates, checks the hop bound, and streams the request to the
// upstream processor, relaying its response byte-for-byte.
func (r *Relay) Handle(c *gin.Context) {
	endpointID := c.Param("endpoint_id")

	if len(r.cfg.Edge.IngestKeys) == 0 {
		httpapi.Misconfigured(c, "missing EDGE_INGEST_KEYS")
		return
	}
	if !guard.AnyKeyMatches(c.GetHeader(HeaderIngestKey), r.cfg.Edge.IngestKeys) {
		httpapi.NotAuthenticated(c)
		return
	}
	if !guard.EndpointMatches(r.cfg.Edge.ExpectEndpointID, endpointID) {
		httpapi.NotAuthenticated(c)
		return
	}

	hop, ok := guard.NextHop(c.GetHeader(HeaderEdgeHop), r.cfg.Edge.MaxHops)
	if !ok {
		metrics.ForwardRequestsTotal.WithLabelValues("loop_detected").Inc()
		httpapi.Error(c, http.StatusLoopDetected, httpapi.CodeLoopDetected, "too many hops")
		return
	}

	upstreamKey := strings.TrimSpace(r.cfg.Upstream.IngestKey)
	if upstreamKey == "" {
		httpapi.Misconfigured(c, "missing UPSTREAM_INGEST_KEY")
		return
	}
	upstreamURL := r.cfg.Upstream.ResolvedUpstreamURL()
	if upstreamURL == "" {
		httpapi.Misconfigured(c, "missing UPSTREAM_INGEST_URL")
		return
	}

	target, err := BuildUpstreamURL(upstreamURL, c.Request.URL.RawQuery)
	if err != nil {
		httpapi.Misconfigured(c, "invalid UPSTREAM_INGEST_URL")
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, target, c.Request.Body)
	if err != nil {
		httpapi.Misconfigured(c, "invalid UPSTREAM_INGEST_URL")
		return
	}

	for _, h := range forwardedHeaders {
		if v := c.GetHeader(h); v != "" {
			req.Header.Set(h, v)
		}
	}

	// The upstream secret always replaces whatever the client presented.
	req.Header.Set(HeaderIngestKey, upstreamKey)
	req.Header.Set(HeaderEdgeHop, strconv.Itoa(hop))

	if name := strings.TrimSpace(r.cfg.Edge.Name); name != "" {
		req.Header.Set(HeaderEdgeName, name)
	}
	if ip := clientIP(c); ip != "" {
		req.Header.Set(HeaderEdgeClientIP, ip)
		req.Header.Set("X-Forwarded-For", ip)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Errorw("Upstream forward failed",
			"endpoint_id", endpointID,
			"error", err,
		)
		metrics.ForwardRequestsTotal.WithLabelValues("error").Inc()
		httpapi.Error(c, http.StatusBadGateway, "upstream_error", "upstream unreachable")
		return
	}
	defer resp.Body.Close()

	metrics.ForwardRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	for key, values := range resp.Header {
		for _, v := range values {
			c.Writer.Header().Add(key, v)
		}
	}
	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		r.log.Warnw("Upstream response copy interrupted", "error", err)
	}
}

// BuildUpstreamURL appends the inbound raw query to the configured upstream
// ingest URL. The upstream URL's own query survives and inbound parameters
// are appended as-is, without deduplication.
func BuildUpstreamURL(upstreamIngestURL, inboundRawQuery string) (string, error) {
	u, err := url.Parse(upstreamIngestURL)
	if err != nil {
		return "", err
	}
	if inboundRawQuery != "" {
		if u.RawQuery == "" {
			u.RawQuery = inboundRawQuery
		} else {
			u.RawQuery = u.RawQuery + "&" + inboundRawQuery
		}
	}
	return u.String(), nil
}

// Best available source IP: an upstream CDN header when present, else the
// socket peer.
func clientIP(c *gin.Context) string {
	if ip := c.GetHeader("CF-Connecting-IP"); ip != "" {
		return ip
	}
	return c.ClientIP()
}
