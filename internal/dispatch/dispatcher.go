// Package dispatch fans a matched message out to its channels and folds
// every per-channel outcome into an isolated Result.
package dispatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coachpo/beacon-spear-edge/internal/logger"
	"github.com/coachpo/beacon-spear-edge/internal/message"
	"github.com/coachpo/beacon-spear-edge/internal/provider"
	"github.com/coachpo/beacon-spear-edge/internal/routing"
	"github.com/coachpo/beacon-spear-edge/internal/template"
	"github.com/coachpo/beacon-spear-edge/pkg/metrics"
)

// Result records the settled outcome of one (rule, channel) dispatch.
// Results are appended in settlement order; callers must not rely on it.
type Result struct {
	Rule    string `json:"rule"`
	Channel string `json:"channel"`
	Type    string `json:"type"`
	OK      bool   `json:"ok"`
	Status  int    `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Dispatcher struct {
	sender Sender
	log    logger.Logger
}

func New(sender Sender, log logger.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, log: log}
}

type job struct {
	rule    string
	channel string
	typ     string
	req     *provider.Request
}

// Dispatch evaluates every rule against the message in config order, builds
// provider requests for the matched ones, and issues all network sends
// concurrently, waiting for every one to settle. Rules with an unresolved
// channel or an unknown channel type produce no Result; a build failure
// produces a failed Result without any network I/O; one channel's failure
// never affects another's outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg *routing.Config, endpoint routing.Endpoint, msg *message.Message) ([]Result, int) {
	channels := cfg.ChannelMap()

	results := make([]Result, 0)
	var jobs []job
	matched := 0

	for _, rule := range cfg.Rules {
		if !routing.Matches(rule.Filter, msg) {
			continue
		}
		matched++

		channel, ok := channels[rule.ChannelID]
		if !ok {
			continue
		}

		tctx := template.BuildContext(msg, endpoint)
		payloadTemplate := rule.PayloadTemplate
		if payloadTemplate == nil {
			payloadTemplate = map[string]interface{}{}
		}
		rendered := template.Render(payloadTemplate, tctx)

		switch channel.Type {
		case routing.ChannelTypeBark:
			if serverBaseURL, _ := channel.Config["server_base_url"].(string); serverBaseURL == "" {
				continue
			}
			req, err := provider.BuildBarkRequest(channel.Config, rendered, msg)
			if err != nil {
				results = append(results, Result{
					Rule: rule.ID, Channel: channel.ID, Type: channel.Type,
					OK: false, Error: err.Error(),
				})
				metrics.DispatchTotal.WithLabelValues(channel.Type, "build_error").Inc()
				continue
			}
			jobs = append(jobs, job{rule: rule.ID, channel: channel.ID, typ: channel.Type, req: req})

		case routing.ChannelTypeNtfy:
			req, err := provider.BuildNtfyRequest(channel.Config, rendered, msg)
			if err != nil {
				results = append(results, Result{
					Rule: rule.ID, Channel: channel.ID, Type: channel.Type,
					OK: false, Error: err.Error(),
				})
				metrics.DispatchTotal.WithLabelValues(channel.Type, "build_error").Inc()
				continue
			}
			jobs = append(jobs, job{rule: rule.ID, channel: channel.ID, typ: channel.Type, req: req})

		default:
			d.log.Debugw("Skipping unknown channel type",
				"channel_id", channel.ID,
				"channel_type", channel.Type,
			)
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, j := range jobs {
		j := j
		g.Go(func() error {
			result := d.send(gctx, j)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}

	// Tasks never return errors; Wait is a pure join-all barrier.
	_ = g.Wait()

	return results, matched
}

func (d *Dispatcher) send(ctx context.Context, j job) Result {
	start := time.Now()
	status, err := d.sender.Send(ctx, j.req)
	metrics.ObserveDispatchDuration(j.typ, time.Since(start))

	if err != nil {
		d.log.Warnw("Channel dispatch failed",
			"rule_id", j.rule,
			"channel_id", j.channel,
			"channel_type", j.typ,
			"error", err,
		)
		metrics.DispatchTotal.WithLabelValues(j.typ, "error").Inc()
		return Result{Rule: j.rule, Channel: j.channel, Type: j.typ, OK: false, Error: err.Error()}
	}

	ok := status >= 200 && status < 300
	outcome := "ok"
	if !ok {
		outcome = "rejected"
		d.log.Warnw("Channel dispatch rejected",
			"rule_id", j.rule,
			"channel_id", j.channel,
			"channel_type", j.typ,
			"status", status,
		)
	}
	metrics.DispatchTotal.WithLabelValues(j.typ, outcome).Inc()
	return Result{Rule: j.rule, Channel: j.channel, Type: j.typ, OK: ok, Status: status}
}
