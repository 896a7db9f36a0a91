package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "prereg/pkg/domain"
)

func TestCallerRoundTrip(t *testing.T) {
	ctx := WithCaller(context.Background(), id.UserID("applicant@example.com"), []string{"INDIVIDUAL"})

	assert.Equal(t, id.UserID("applicant@example.com"), UserID(ctx))
	assert.Equal(t, []string{"INDIVIDUAL"}, Roles(ctx))
}

func TestDefaultsWhenUnset(t *testing.T) {
	ctx := context.Background()

	assert.True(t, UserID(ctx).IsNil())
	assert.Nil(t, Roles(ctx))
	assert.Empty(t, RequestID(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestWithTimePinsNow(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := WithTime(context.Background(), fixed)

	assert.Equal(t, fixed, Now(ctx))
}
