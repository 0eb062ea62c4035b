package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func TestSafeAttributesDropsCredentials(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/tasks"),
		attribute.String("Authorization", "Bearer abc"),
	)
	require.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeError(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	assert.Equal(t, errRedacted, SafeError(errors.New("ERROR: SELECT * FROM users WHERE id = 1")))
	plain := errors.New("slot_occupied")
	assert.Equal(t, plain, SafeError(plain))
}

func TestNewProviderDisabled(t *testing.T) {
	tp, err := NewProvider(nil, Config{ServiceName: "portyard", SamplingRatio: 2}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, tp)
	assert.Equal(t, 1.0, clampRatio(2))
	assert.Equal(t, 0.0, clampRatio(-1))
}
