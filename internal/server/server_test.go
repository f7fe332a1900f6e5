package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/metastage/pkg/logging"
	"github.com/agentstation/metastage/pkg/patch"
	"github.com/agentstation/metastage/pkg/preview"
	"github.com/agentstation/metastage/pkg/session"
)

type fakeClient struct {
	response  *preview.Response
	submitted [][]patch.EntityPatch
	submitErr error
}

func (f *fakeClient) FetchPreview(_ context.Context, _ preview.Query) (*preview.Response, error) {
	return f.response, nil
}

func (f *fakeClient) SubmitPatches(_ context.Context, patches []patch.EntityPatch) error {
	f.submitted = append(f.submitted, patches)
	return f.submitErr
}

func strPtr(s string) *string { return &s }

func testResponse() *preview.Response {
	return &preview.Response{
		Start: 0,
		Count: 25,
		Total: 1,
		Groups: []preview.RawGroup{
			{
				Type:  "DATASET",
				Total: 1,
				Entities: []preview.RawEntity{
					{
						URN:                 "urn:li:dataset:orders",
						Type:                "DATASET",
						Name:                "orders",
						Status:              "READY",
						Description:         strPtr("order table"),
						PreviousDescription: strPtr("order table"),
					},
				},
			},
		},
	}
}

func testServer(t *testing.T, client session.Client, cfg Config) *Server {
	t.Helper()
	sess := session.New(client, session.WithLogger(&logging.Nop))
	require.NoError(t, sess.Refresh(context.Background()))
	return New(sess, cfg, &logging.Nop)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestPreviewEndpoint(t *testing.T) {
	srv := testServer(t, &fakeClient{response: testResponse()}, DefaultConfig())
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/preview", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.Nil(t, envelope["error"])

	data := envelope["data"].(map[string]any)
	groups := data["groups"].([]any)
	require.Len(t, groups, 1)
	group := groups[0].(map[string]any)
	assert.Equal(t, "DATASET", group["key"])
}

func TestDraftLifecycle(t *testing.T) {
	srv := testServer(t, &fakeClient{response: testResponse()}, DefaultConfig())
	handler := srv.Handler()

	body := strings.NewReader(`{"description": "new description"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/drafts/urn:li:dataset:orders", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, true, data["changed"])

	// The drafted change shows up in the compiled patch set
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/changes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	data = decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(1), data["entities"])

	// Clearing the draft empties the patch set again
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/drafts/urn:li:dataset:orders", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/changes", nil))
	data = decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(0), data["entities"])
}

func TestDraftUnknownEntity(t *testing.T) {
	srv := testServer(t, &fakeClient{response: testResponse()}, DefaultConfig())

	body := strings.NewReader(`{"name": "whatever"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/drafts/urn:li:dataset:missing", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	envelope := decodeEnvelope(t, rec)
	errObj := envelope["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", errObj["code"])
}

func TestSubmitEndpoint(t *testing.T) {
	client := &fakeClient{response: testResponse()}
	srv := testServer(t, client, DefaultConfig())
	handler := srv.Handler()

	body := strings.NewReader(`{"name": "orders_v2"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/drafts/urn:li:dataset:orders", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/submit", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(1), data["operations"])
	require.Len(t, client.submitted, 1)
	assert.Equal(t, "urn:li:dataset:orders", client.submitted[0][0].URN)
}

func TestHealthAndReady(t *testing.T) {
	srv := testServer(t, &fakeClient{response: testResponse()}, DefaultConfig())
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = "secret"
	srv := testServer(t, &fakeClient{response: testResponse()}, cfg)
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/preview", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/preview", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays public
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidStartParameter(t *testing.T) {
	srv := testServer(t, &fakeClient{response: testResponse()}, DefaultConfig())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/preview?start=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
