// Package session implements per-session repetition-suppression policy and
// one-turn conversational memory on top of the KV store.
//
// Each session id owns exactly one record ("sess:{id}"), created implicitly
// on first write and refreshed to a 24h TTL on every write. Reads fail open
// (store down ⇒ everything allowed, no prior context) and writes are
// best-effort; neither ever fails the chat request.
package session

import (
	"context"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/citybrief/citybrief/internal/otel"
	"github.com/citybrief/citybrief/internal/store"
)

var tracer = otel.Tracer("github.com/citybrief/citybrief/internal/session")

// Truncation limits for the stored one-turn exchange.
const (
	MaxUserMessageLen = 500
	MaxAgentReplyLen  = 1000
)

// PurgePatterns are the key namespaces swept by the administrative purge.
var PurgePatterns = []string{"cache:*", "sess:*"}

// State is the persisted per-session record. Timestamps are unix seconds;
// zero means "never sent", which policy treats as infinitely long ago.
type State struct {
	LastWeatherSentAt int64  `json:"last_weather_sent_at"`
	LastNewsSentAt    int64  `json:"last_news_sent_at"`
	LastChatSentAt    int64  `json:"last_chat_sent_at"`
	LastUserMessage   string `json:"last_user_message,omitempty"`
	LastAgentReply    string `json:"last_agent_reply,omitempty"`
}

// Key returns the store key for a session id.
func Key(sessionID string) string {
	return "sess:" + sessionID
}

// Policy gates repeated inclusion of weather/news content per session.
type Policy struct {
	store          *store.Store
	suppressWindow time.Duration
	sessionTTL     time.Duration

	now func() time.Time // injectable for tests
}

// NewPolicy creates a session policy store. store may be nil, in which case
// every read fails open and every write is a no-op.
func NewPolicy(s *store.Store, suppressWindow, sessionTTL time.Duration) *Policy {
	return &Policy{
		store:          s,
		suppressWindow: suppressWindow,
		sessionTTL:     sessionTTL,
		now:            time.Now,
	}
}

// ShouldInclude reports whether weather and news content may be included
// this turn. A force flag wins unconditionally (explicit user intent);
// otherwise a signal is allowed iff its last send is at least the suppress
// window ago. Unseen sessions always pass. Fail-open on store problems.
func (p *Policy) ShouldInclude(ctx context.Context, sessionID string, forceWeather, forceNews bool) (includeWeather, includeNews bool) {
	ctx, span := tracer.Start(ctx, "session.should_include",
		trace.WithAttributes(
			attribute.String("session_id", sessionID),
			attribute.Bool("force_weather", forceWeather),
			attribute.Bool("force_news", forceNews),
		))
	defer span.End()

	state, ok := p.load(ctx, sessionID)
	if !ok {
		return true, true
	}

	now := p.now().Unix()
	window := int64(p.suppressWindow / time.Second)
	includeWeather = forceWeather || now-state.LastWeatherSentAt >= window
	includeNews = forceNews || now-state.LastNewsSentAt >= window

	span.SetAttributes(
		attribute.Bool("include_weather", includeWeather),
		attribute.Bool("include_news", includeNews),
	)
	return includeWeather, includeNews
}

// MarkSent records which signals were delivered this turn and stores the
// latest exchange. Sent timestamps advance to now only for signals whose
// flag is set; the chat timestamp always advances. The record's TTL resets.
// Store failures are logged and swallowed.
func (p *Policy) MarkSent(ctx context.Context, sessionID string, weatherSent, newsSent bool, userMessage, agentReply string) {
	ctx, span := tracer.Start(ctx, "session.mark_sent",
		trace.WithAttributes(
			attribute.String("session_id", sessionID),
			attribute.Bool("weather_sent", weatherSent),
			attribute.Bool("news_sent", newsSent),
		))
	defer span.End()

	if p.store == nil {
		return
	}

	state, _ := p.load(ctx, sessionID)

	now := p.now().Unix()
	if weatherSent {
		state.LastWeatherSentAt = now
	}
	if newsSent {
		state.LastNewsSentAt = now
	}
	state.LastChatSentAt = now

	if userMessage != "" {
		state.LastUserMessage = truncate(userMessage, MaxUserMessageLen)
	}
	if agentReply != "" {
		state.LastAgentReply = truncate(agentReply, MaxAgentReplyLen)
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := p.store.Set(ctx, Key(sessionID), string(raw), p.sessionTTL); err != nil {
		span.RecordError(err)
		log.Warn().Err(err).
			Str("session_id", sessionID).
			Func(otel.LogTraceFields(ctx)).
			Msg("mark_sent_dropped")
	}
}

// GetLastExchange returns the stored one-turn exchange, or empty strings when
// the session is unknown or the store is unavailable.
func (p *Policy) GetLastExchange(ctx context.Context, sessionID string) (lastUserMessage, lastAgentReply string) {
	ctx, span := tracer.Start(ctx, "session.get_last_exchange",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	state, ok := p.load(ctx, sessionID)
	if !ok {
		return "", ""
	}
	return state.LastUserMessage, state.LastAgentReply
}

// load reads session state. The bool is false when the store is nil/failed
// or the record is absent or malformed; the returned state is then zero,
// which behaves like a never-contacted session.
func (p *Policy) load(ctx context.Context, sessionID string) (State, bool) {
	var state State
	if p.store == nil {
		return state, false
	}
	raw, ok, err := p.store.Get(ctx, Key(sessionID))
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("session_read_failed")
		return state, false
	}
	if !ok {
		return state, false
	}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("session_record_malformed")
		return State{}, false
	}
	return state, true
}

// truncate caps s at max bytes without splitting a multi-byte rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
