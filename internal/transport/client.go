// Package transport implements the GraphQL-over-HTTP client for the
// upstream metadata service: fetching entity import previews and submitting
// compiled patch batches.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/metastage/pkg/errors"
	"github.com/agentstation/metastage/pkg/logging"
	"github.com/agentstation/metastage/pkg/patch"
	"github.com/agentstation/metastage/pkg/preview"
)

// DefaultTimeout bounds a single upstream round trip.
const DefaultTimeout = 30 * time.Second

// Client talks to the metadata service's GraphQL endpoint. It satisfies
// session.Client.
type Client struct {
	http     *http.Client
	endpoint string
	auth     Authenticator
	logger   *zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithAuth sets the request authenticator.
func WithAuth(auth Authenticator) Option {
	return func(c *Client) {
		if auth != nil {
			c.auth = auth
		}
	}
}

// WithTimeout overrides the round-trip timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the given GraphQL endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: DefaultTimeout},
		endpoint: endpoint,
		auth:     NoAuth{},
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const previewQuery = `query entityImportPreview($input: EntityImportPreviewInput!) {
  entityImportPreview(input: $input) {
    start
    count
    total
    groups {
      ...groupFields
      groups {
        ...groupFields
      }
    }
  }
}
fragment entityFields on ImportPreviewEntity {
  urn
  type
  name
  previousName
  description
  previousDescription
  status
  path
  parentUrn
  aspects {
    aspectName
    displayName
    description
    newValue
    previousValue
    changeType
  }
}
fragment groupFields on ImportPreviewGroup {
  type
  label
  total
  statusCounts
  entities {
    ...entityFields
    children {
      ...entityFields
    }
  }
}`

const submitMutation = `mutation submitEntityPatches($input: SubmitEntityPatchesInput!) {
  submitEntityPatches(input: $input) {
    status
    message
  }
}`

// FetchPreview retrieves one page of the entity import preview.
func (c *Client) FetchPreview(ctx context.Context, q preview.Query) (*preview.Response, error) {
	var payload struct {
		Preview preview.Response `json:"entityImportPreview"`
	}
	if err := c.do(ctx, "preview", previewQuery, map[string]any{"input": q}, &payload); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("query", q.Query).
		Int("start", q.Start).
		Int("total", payload.Preview.Total).
		Msg("Preview fetched")

	return &payload.Preview, nil
}

// SubmitPatches commits a batch of patches in a single mutation. Any
// rejection fails the whole batch.
func (c *Client) SubmitPatches(ctx context.Context, patches []patch.EntityPatch) error {
	var payload struct {
		Result struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"submitEntityPatches"`
	}

	input := map[string]any{"input": map[string]any{"patches": patches}}
	if err := c.do(ctx, "submit", submitMutation, input, &payload); err != nil {
		return err
	}

	if payload.Result.Status != "SUCCESS" {
		message := payload.Result.Message
		if message == "" {
			message = "status " + payload.Result.Status
		}
		return errors.NewSubmitError(nil, message, nil)
	}

	c.logger.Debug().Int("patches", len(patches)).Msg("Patches accepted")
	return nil
}

// graphqlRequest is the wire envelope for a GraphQL call.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors,omitempty"`
}

func (c *Client) do(ctx context.Context, operation, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return errors.WrapAPI(operation, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.WrapAPI(operation, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.auth.Apply(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WrapAPI(operation, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &errors.APIError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Message:    string(snippet),
			Endpoint:   c.endpoint,
		}
	}

	var envelope graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return errors.WrapParse("json", err)
	}
	if len(envelope.Errors) > 0 {
		return errors.NewAPIError(operation, 0, envelope.Errors[0].Message)
	}
	if envelope.Data == nil {
		return errors.NewAPIError(operation, 0, "empty response data")
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return errors.WrapParse("json", fmt.Errorf("decode %s response: %w", operation, err))
	}
	return nil
}
