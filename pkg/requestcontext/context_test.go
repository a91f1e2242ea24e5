package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow(t *testing.T) {
	t.Run("injected time wins", func(t *testing.T) {
		fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		ctx := WithTime(context.Background(), fixed)
		assert.Equal(t, fixed, Now(ctx))
	})

	t.Run("falls back to wall clock", func(t *testing.T) {
		assert.WithinDuration(t, time.Now(), Now(context.Background()), time.Second)
	})
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	assert.Equal(t, "req-1", RequestID(WithRequestID(context.Background(), "req-1")))
}
