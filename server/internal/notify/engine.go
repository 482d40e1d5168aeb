package notify

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coursepulse/coursepulse/pkg/channel"
	"github.com/coursepulse/coursepulse/server/internal/config"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
)

// Notification records one offline-delivery event: an envelope published to
// a stream that had no connected subscribers, matched by a rule.
type Notification struct {
	ID       string           `json:"id"`
	Rule     string           `json:"rule"`
	Stream   string           `json:"stream"`
	Event    string           `json:"event"`
	Envelope channel.Envelope `json:"envelope"`
	FiredAt  time.Time        `json:"fired_at"`
}

// Engine matches missed publishes against the configured rules and delivers
// webhook notifications, deduplicated per rule and stream by a cooldown.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []config.NotifyRule
	webhooks []config.WebhookConfig
	lastFire map[string]time.Time // key: "ruleName:stream"
	history  []*Notification
	client   *http.Client
	now      func() time.Time // injectable for deterministic tests
}

// New creates an Engine from the server notify configuration.
// An Engine with empty rules is valid, PublishMissed becomes a no-op.
func New(cfg config.NotifyConfig) *Engine {
	return &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// SetRules replaces the rule set. Used on config hot reload; cooldown state
// for rules that keep their name is preserved.
func (e *Engine) SetRules(rules []config.NotifyRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
}

// PublishMissed tests a publish that reached zero subscribers against all
// rules. Matching rules outside their cooldown window record a notification
// and trigger webhook delivery asynchronously.
func (e *Engine) PublishMissed(stream string, env channel.Envelope) {
	e.mu.Lock()
	rules := e.rules
	e.mu.Unlock()
	if len(rules) == 0 {
		return
	}

	now := e.now()
	for _, rule := range rules {
		if !strings.HasPrefix(stream, rule.StreamPrefix) {
			continue
		}
		if rule.Event != "" && rule.Event != env.Type {
			continue
		}

		key := rule.Name + ":" + stream
		cooldown := rule.Cooldown
		if cooldown <= 0 {
			cooldown = defaultCooldown
		}

		e.mu.Lock()
		if now.Sub(e.lastFire[key]) <= cooldown {
			e.mu.Unlock()
			continue
		}
		n := &Notification{
			ID:       fmt.Sprintf("%s:%s:%d", rule.Name, stream, now.UnixNano()),
			Rule:     rule.Name,
			Stream:   stream,
			Event:    env.Type,
			Envelope: env,
			FiredAt:  now,
		}
		e.lastFire[key] = now
		e.history = append(e.history, n)
		if len(e.history) > maxHistoryLen {
			e.history = e.history[len(e.history)-maxHistoryLen:]
		}
		cp := *n
		e.mu.Unlock()

		slog.Info("notify: rule fired",
			"rule", rule.Name,
			"stream", stream,
			"event", env.Type,
		)
		go e.deliver(&cp)
	}
}

// Recent returns copies of the recorded notifications, oldest first.
func (e *Engine) Recent() []*Notification {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Notification, 0, len(e.history))
	for _, n := range e.history {
		cp := *n
		out = append(out, &cp)
	}
	return out
}
