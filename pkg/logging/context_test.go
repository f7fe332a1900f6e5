package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Equal(t, Default(), FromContext(context.Background()))
	assert.Equal(t, Default(), FromContext(nil)) //nolint:staticcheck // nil context fallback is the point
}

func TestWithLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	ctx := WithLogger(context.Background(), &logger)
	assert.Equal(t, &logger, FromContext(ctx))
}

func TestWithEntityAddsField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	ctx := WithEntity(WithLogger(context.Background(), &logger), "urn:li:dataset:orders")
	FromContext(ctx).Info().Msg("draft updated")

	assert.Contains(t, buf.String(), `"urn":"urn:li:dataset:orders"`)
	assert.Contains(t, buf.String(), "draft updated")
}

func TestWithOperationAddsField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	ctx := WithOperation(WithLogger(context.Background(), &logger), "submit")
	FromContext(ctx).Info().Msg("done")

	assert.Contains(t, buf.String(), `"operation":"submit"`)
}
