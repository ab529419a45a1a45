package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetSessionID_and_SessionID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, SessionID(ctx))

	ctx2 := SetSessionID(ctx, "sess-a")
	assert.Equal(t, "sess-a", SessionID(ctx2))
	assert.Empty(t, SessionID(ctx))

	ctx3 := SetSessionID(ctx2, "sess-b")
	assert.Equal(t, "sess-b", SessionID(ctx3))
	assert.Equal(t, "sess-a", SessionID(ctx2))
}
