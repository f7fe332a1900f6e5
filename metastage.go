// Package metastage previews staged metadata changes from a metadata
// service, layers draft overrides on top of the proposed values, and
// submits the resulting patch set in one batch.
//
// The root package wires a review session to a GraphQL upstream:
//
//	sess, err := metastage.New(
//		metastage.WithEndpoint("https://datahub.example.com/api/graphql"),
//		metastage.WithToken(os.Getenv("METASTAGE_UPSTREAM_TOKEN")),
//	)
//	if err != nil {
//		return err
//	}
//	if err := sess.Refresh(ctx); err != nil {
//		return err
//	}
//
// Callers that already have a session.Client (a test double, a different
// transport) construct session.New directly.
package metastage

import (
	"time"

	"github.com/agentstation/metastage/internal/transport"
	"github.com/agentstation/metastage/pkg/errors"
	"github.com/agentstation/metastage/pkg/session"
)

// Option is a function that configures a review session connection.
type Option func(*config) error

type config struct {
	endpoint    string
	token       string
	timeout     time.Duration
	sessionOpts []session.Option
}

// WithEndpoint sets the metadata service GraphQL endpoint. Required.
func WithEndpoint(url string) Option {
	return func(c *config) error {
		c.endpoint = url
		return nil
	}
}

// WithToken sets the bearer token for the metadata service.
func WithToken(token string) Option {
	return func(c *config) error {
		c.token = token
		return nil
	}
}

// WithTimeout sets the upstream request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return errors.NewValidationError("timeout", d, "must be positive")
		}
		c.timeout = d
		return nil
	}
}

// WithSessionOptions passes options through to the underlying session,
// for example session.WithPageSize or session.WithDebounceWait.
func WithSessionOptions(opts ...session.Option) Option {
	return func(c *config) error {
		c.sessionOpts = append(c.sessionOpts, opts...)
		return nil
	}
}

// New creates a review session connected to the configured upstream.
func New(opts ...Option) (*session.Session, error) {
	c := &config{timeout: transport.DefaultTimeout}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.endpoint == "" {
		return nil, errors.NewConfigError("metastage", "an upstream endpoint is required", nil)
	}

	transportOpts := []transport.Option{transport.WithTimeout(c.timeout)}
	if c.token != "" {
		transportOpts = append(transportOpts, transport.WithAuth(transport.TokenAuth{Token: c.token}))
	}

	client := transport.New(c.endpoint, transportOpts...)
	return session.New(client, c.sessionOpts...), nil
}
