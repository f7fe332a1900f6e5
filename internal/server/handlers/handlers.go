// Package handlers implements the HTTP handlers for the metastage review
// API. Each handler wraps one session operation and renders the standard
// response envelope.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/agentstation/metastage/internal/server/response"
	"github.com/agentstation/metastage/pkg/draft"
	"github.com/agentstation/metastage/pkg/errors"
	"github.com/agentstation/metastage/pkg/logging"
	"github.com/agentstation/metastage/pkg/preview"
	"github.com/agentstation/metastage/pkg/session"
)

// Handlers holds the API handlers and their dependencies.
type Handlers struct {
	session *session.Session
	logger  *zerolog.Logger
}

// New creates handlers backed by the given review session.
func New(sess *session.Session, logger *zerolog.Logger) *Handlers {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handlers{session: sess, logger: logger}
}

// previewPayload is the GET /preview response body.
type previewPayload struct {
	Groups    []preview.EntityGroup  `json:"groups"`
	Query     string                 `json:"query"`
	Start     int                    `json:"start"`
	Count     int                    `json:"count"`
	Total     int                    `json:"total"`
	FetchedAt string                 `json:"fetchedAt,omitempty"`
	Drafts    map[string]draft.Draft `json:"drafts"`
}

// Preview handles GET /api/v1/preview. Without parameters it returns the
// current snapshot, fetching one first if none exists. A query parameter
// runs a search, start moves the page, and refresh=true forces a re-fetch.
func (h *Handlers) Preview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	switch {
	case params.Has("query"):
		if err := h.session.SearchNow(ctx, params.Get("query")); err != nil && !errors.IsStale(err) {
			response.ErrorFromType(w, err)
			return
		}
	case params.Has("start"):
		start, err := strconv.Atoi(params.Get("start"))
		if err != nil {
			response.BadRequest(w, "Invalid start parameter", "start must be an integer")
			return
		}
		if err := h.session.SetPage(ctx, start); err != nil && !errors.IsStale(err) {
			response.ErrorFromType(w, err)
			return
		}
	case params.Get("refresh") == "true" || h.session.Snapshot().FetchedAt.IsZero():
		if err := h.session.Refresh(ctx); err != nil && !errors.IsStale(err) {
			response.ErrorFromType(w, err)
			return
		}
	}

	response.OK(w, h.payload())
}

func (h *Handlers) payload() previewPayload {
	snap := h.session.Snapshot()
	drafts := h.session.Drafts()

	pending := make(map[string]draft.Draft, drafts.Len())
	for _, urn := range drafts.URNs() {
		if d, ok := drafts.Get(urn); ok {
			pending[urn] = d
		}
	}

	payload := previewPayload{
		Groups: snap.Groups,
		Query:  snap.Query,
		Start:  snap.Start,
		Count:  snap.Count,
		Total:  snap.Total,
		Drafts: pending,
	}
	if !snap.FetchedAt.IsZero() {
		payload.FetchedAt = snap.FetchedAt.String()
	}
	if payload.Groups == nil {
		payload.Groups = []preview.EntityGroup{}
	}
	return payload
}

// Changes handles GET /api/v1/changes, returning the compiled patch set for
// the current baseline plus drafts.
func (h *Handlers) Changes(w http.ResponseWriter, _ *http.Request) {
	patches := h.session.Changes()
	operations := 0
	for _, p := range patches {
		operations += len(p.Operations)
	}
	response.OK(w, map[string]any{
		"patches":    patches,
		"entities":   len(patches),
		"operations": operations,
	})
}

// UpdateDraft handles PATCH /api/v1/drafts/{urn}. The body is a partial
// draft; fields omitted stay untouched, an aspect mapped to null is an
// explicit remove.
func (h *Handlers) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	urn := r.PathValue("urn")
	if urn == "" {
		response.BadRequest(w, "Missing entity URN", "")
		return
	}

	var partial draft.Draft
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		response.BadRequest(w, "Invalid draft body", err.Error())
		return
	}

	snap := h.session.Snapshot()
	if _, ok := snap.Baseline[urn]; !ok {
		response.NotFound(w, "Unknown entity", "URN "+urn+" is not in the current preview")
		return
	}

	changed := h.session.UpdateDraft(urn, partial)
	current, _ := h.session.Drafts().Get(urn)
	response.OK(w, map[string]any{
		"urn":     urn,
		"changed": changed,
		"draft":   current,
	})
}

// ClearDraft handles DELETE /api/v1/drafts/{urn}.
func (h *Handlers) ClearDraft(w http.ResponseWriter, r *http.Request) {
	urn := r.PathValue("urn")
	if urn == "" {
		response.BadRequest(w, "Missing entity URN", "")
		return
	}
	h.session.ClearDraft(urn)
	response.OK(w, map[string]any{"urn": urn})
}

// Submit handles POST /api/v1/submit, committing the compiled patch set.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	result, err := h.session.Submit(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Submit via API failed")
		response.ErrorFromType(w, err)
		return
	}
	response.OK(w, result)
}

// Health handles GET /health for liveness checks.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]string{"status": "healthy"})
}

// Ready handles GET /ready. The server is ready once a preview baseline has
// been applied.
func (h *Handlers) Ready(w http.ResponseWriter, _ *http.Request) {
	if h.session.Snapshot().FetchedAt.IsZero() {
		response.JSON(w, http.StatusServiceUnavailable, response.Fail(
			"NOT_READY",
			"No preview baseline loaded yet",
			"",
		))
		return
	}
	response.OK(w, map[string]string{"status": "ready"})
}
