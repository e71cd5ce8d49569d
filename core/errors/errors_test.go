package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindNotFound, "not_found"},
		{KindDisabled, "disabled"},
		{KindConfiguration, "configuration_error"},
		{KindRemoteAPI, "remote_api_error"},
		{KindTimeout, "timeout"},
		{KindStorageUnavailable, "storage_unavailable"},
		{KindClassificationFallback, "classification_fallback"},
		{Kind(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.expected {
				t.Errorf("Kind.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTieredErrorError(t *testing.T) {
	t.Run("with underlying error", func(t *testing.T) {
		err := Wrap(KindStorageUnavailable, "write failed", errors.New("disk full"))
		assert.Equal(t, "[storage_unavailable] write failed: disk full", err.Error())
	})

	t.Run("without underlying error", func(t *testing.T) {
		err := New(KindDisabled, "skill off")
		assert.Equal(t, "[disabled] skill off", err.Error())
	})
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("lookup: %w", New(KindNotFound, "no skill weather"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrDisabled))
}

func TestRemoteAPIErrorTiers(t *testing.T) {
	tests := []struct {
		status int
		tier   ErrorTier
		retry  bool
	}{
		{http.StatusTooManyRequests, TierExternalRateLimit, true},
		{http.StatusBadGateway, TierExternalDegrading, true},
		{http.StatusNotFound, TierPermanent, false},
		{http.StatusRequestTimeout, TierTransient, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := NewRemoteAPIError(tt.status, "bad status")
			assert.Equal(t, KindRemoteAPI, err.Kind)
			assert.Equal(t, tt.status, err.StatusCode)
			assert.Equal(t, tt.tier, err.Tier)
			assert.Equal(t, tt.retry, IsRetryable(err))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("call: %w", context.Canceled)))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.True(t, IsKind(fmt.Errorf("x: %w", ErrMissingConfig), KindConfiguration))
	assert.False(t, IsKind(nil, KindUnknown))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrTimeout))
	assert.True(t, IsRetryable(ErrStorageUnavailable))
	assert.False(t, IsRetryable(ErrMissingConfig))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestWithContext(t *testing.T) {
	err := New(KindNotFound, "missing").WithContext("skill_id", "weather")
	assert.Equal(t, "weather", err.Context["skill_id"])
}

func TestHintNeverLeaksMessage(t *testing.T) {
	err := Wrap(KindRemoteAPI, "secret endpoint http://internal", nil)
	hint := Hint(err)
	assert.NotContains(t, hint, "internal")
	assert.NotEmpty(t, Hint(errors.New("whatever")))
}
