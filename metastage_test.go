package metastage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/metastage/pkg/errors"
	"github.com/agentstation/metastage/pkg/session"
)

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New()
	require.Error(t, err)
	var cfgErr *errors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestNewWithOptions(t *testing.T) {
	sess, err := New(
		WithEndpoint("https://datahub.example.com/api/graphql"),
		WithToken("tok"),
		WithTimeout(5*time.Second),
		WithSessionOptions(session.WithPageSize(10)),
	)
	require.NoError(t, err)
	require.NotNil(t, sess)

	// No fetch has happened yet
	assert.True(t, sess.Snapshot().FetchedAt.IsZero())
}

func TestNewRejectsBadTimeout(t *testing.T) {
	_, err := New(
		WithEndpoint("https://datahub.example.com/api/graphql"),
		WithTimeout(-time.Second),
	)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}
