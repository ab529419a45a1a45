package session

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citybrief/citybrief/internal/store"
)

func newTestPolicy(t *testing.T) (*Policy, *time.Time) {
	t.Helper()
	s, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	current := time.Unix(1_700_000_000, 0)
	p := NewPolicy(s, time.Hour, 24*time.Hour)
	p.now = func() time.Time { return current }
	return p, &current
}

func TestShouldInclude_UnseenSessionPasses(t *testing.T) {
	p, _ := newTestPolicy(t)

	w, n := p.ShouldInclude(context.Background(), "fresh", false, false)
	assert.True(t, w, "never-contacted session is treated as long overdue")
	assert.True(t, n)
}

func TestShouldInclude_ForceAlwaysWins(t *testing.T) {
	p, _ := newTestPolicy(t)
	ctx := context.Background()

	p.MarkSent(ctx, "s1", true, true, "", "")

	w, n := p.ShouldInclude(ctx, "s1", true, true)
	assert.True(t, w)
	assert.True(t, n)
}

func TestShouldInclude_SuppressesWithinWindow(t *testing.T) {
	p, now := newTestPolicy(t)
	ctx := context.Background()

	p.MarkSent(ctx, "s1", true, false, "", "")

	w, n := p.ShouldInclude(ctx, "s1", false, false)
	assert.False(t, w, "weather sent just now must be suppressed")
	assert.True(t, n, "news never sent must pass")

	*now = now.Add(59 * time.Minute)
	w, _ = p.ShouldInclude(ctx, "s1", false, false)
	assert.False(t, w, "still inside the window")

	*now = now.Add(time.Minute)
	w, _ = p.ShouldInclude(ctx, "s1", false, false)
	assert.True(t, w, "exactly at the window boundary must pass")
}

func TestShouldInclude_Idempotent(t *testing.T) {
	p, _ := newTestPolicy(t)
	ctx := context.Background()

	p.MarkSent(ctx, "s1", true, true, "", "")

	w1, n1 := p.ShouldInclude(ctx, "s1", false, false)
	w2, n2 := p.ShouldInclude(ctx, "s1", false, false)
	w3, n3 := p.ShouldInclude(ctx, "s1", false, false)
	assert.Equal(t, w1, w2)
	assert.Equal(t, w1, w3)
	assert.Equal(t, n1, n2)
	assert.Equal(t, n1, n3)
}

func TestMarkSent_OnlyFlaggedTimestampsAdvance(t *testing.T) {
	p, now := newTestPolicy(t)
	ctx := context.Background()

	p.MarkSent(ctx, "s1", true, false, "", "")
	firstWeather := now.Unix()

	*now = now.Add(10 * time.Minute)
	p.MarkSent(ctx, "s1", false, true, "", "")

	state, ok := p.load(ctx, "s1")
	require.True(t, ok)
	assert.Equal(t, firstWeather, state.LastWeatherSentAt, "unflagged timestamp must not move")
	assert.Equal(t, now.Unix(), state.LastNewsSentAt)
	assert.Equal(t, now.Unix(), state.LastChatSentAt, "chat timestamp always advances")
}

func TestMarkSent_ExchangeRoundTripWithTruncation(t *testing.T) {
	p, _ := newTestPolicy(t)
	ctx := context.Background()

	longUser := strings.Repeat("u", 600)
	longReply := strings.Repeat("r", 1200)
	p.MarkSent(ctx, "s1", false, false, longUser, longReply)

	u, r := p.GetLastExchange(ctx, "s1")
	assert.Equal(t, strings.Repeat("u", MaxUserMessageLen), u)
	assert.Equal(t, strings.Repeat("r", MaxAgentReplyLen), r)
}

func TestMarkSent_TruncationKeepsRunesIntact(t *testing.T) {
	p, _ := newTestPolicy(t)
	ctx := context.Background()

	// Final rune straddles the byte limit; it must be dropped whole, not split.
	user := strings.Repeat("a", MaxUserMessageLen-1) + "é"
	reply := strings.Repeat("b", MaxAgentReplyLen-2) + "日本"
	p.MarkSent(ctx, "s1", false, false, user, reply)

	u, r := p.GetLastExchange(ctx, "s1")
	assert.True(t, utf8.ValidString(u))
	assert.True(t, utf8.ValidString(r))
	assert.Equal(t, strings.Repeat("a", MaxUserMessageLen-1), u)
	assert.Equal(t, strings.Repeat("b", MaxAgentReplyLen-2), r)
}

func TestMarkSent_EmptyExchangePreservesPrevious(t *testing.T) {
	p, _ := newTestPolicy(t)
	ctx := context.Background()

	p.MarkSent(ctx, "s1", false, false, "hello", "hi there")
	p.MarkSent(ctx, "s1", true, false, "", "")

	u, r := p.GetLastExchange(ctx, "s1")
	assert.Equal(t, "hello", u)
	assert.Equal(t, "hi there", r)
}

func TestGetLastExchange_UnknownSession(t *testing.T) {
	p, _ := newTestPolicy(t)

	u, r := p.GetLastExchange(context.Background(), "nope")
	assert.Empty(t, u)
	assert.Empty(t, r)
}

func TestPolicy_NilStoreFailsOpen(t *testing.T) {
	p := NewPolicy(nil, time.Hour, 24*time.Hour)
	ctx := context.Background()

	w, n := p.ShouldInclude(ctx, "s1", false, false)
	assert.True(t, w)
	assert.True(t, n)

	p.MarkSent(ctx, "s1", true, true, "u", "r") // must not panic

	u, r := p.GetLastExchange(ctx, "s1")
	assert.Empty(t, u)
	assert.Empty(t, r)
}

func TestSessionIsolation(t *testing.T) {
	p, _ := newTestPolicy(t)
	ctx := context.Background()

	p.MarkSent(ctx, "a", true, true, "from-a", "reply-a")

	w, n := p.ShouldInclude(ctx, "b", false, false)
	assert.True(t, w)
	assert.True(t, n)

	u, _ := p.GetLastExchange(ctx, "b")
	assert.Empty(t, u)
}
