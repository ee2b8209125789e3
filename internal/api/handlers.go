package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/askwiki/internal/apperr"
	"github.com/starford/askwiki/internal/kb"
	"github.com/starford/askwiki/internal/kbservice"
	"github.com/starford/askwiki/internal/reload"
)

// Handler holds API route handlers.
type Handler struct {
	svc *kbservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *kbservice.Service) *Handler {
	return &Handler{svc: svc}
}

// writeServiceError maps service errors to status codes. Unexpected errors
// are logged under op and hidden behind "internal error".
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, unavailableResponse{
			Error: "knowledge base temporarily unavailable",
			Reply: kbservice.ReplyUnavailable,
		})
	case errors.Is(err, apperr.ErrCatalogDisabled):
		writeJSON(w, http.StatusNotFound, errorBody("generation catalog is disabled"))
	case errors.Is(err, kb.ErrBuildFailure):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func parseThreshold(r *http.Request) (*float64, bool) {
	raw := r.URL.Query().Get("threshold")
	if raw == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, false
	}
	return &f, true
}

// Ask handles GET /api/ask.
//
//	@Summary		Answer a question from the knowledge base
//	@Tags			ask
//	@Produce		json
//	@Param			q			query		string	true	"Question"
//	@Param			threshold	query		number	false	"Minimum score in [0, 1]"
//	@Success		200			{object}	Answer
//	@Failure		400			{object}	errResponse
//	@Failure		503			{object}	unavailableResponse
//	@Security		BearerAuth
//	@Router			/ask [get]
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	threshold, ok := parseThreshold(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("threshold must be a number"))
		return
	}
	answer, err := h.svc.Ask(r.Context(), q, threshold)
	if err != nil {
		writeServiceError(w, "ask", err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// AskBatch handles POST /api/ask/batch.
//
//	@Summary		Answer several questions against one snapshot
//	@Tags			ask
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AskBatchRequest	true	"Questions"
//	@Success		200		{object}	AskBatchResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	unavailableResponse
//	@Security		BearerAuth
//	@Router			/ask/batch [post]
func (h *Handler) AskBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req AskBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Questions) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("questions are required"))
		return
	}
	answers, err := h.svc.AskBatch(r.Context(), req.Questions, req.Threshold)
	if err != nil {
		writeServiceError(w, "ask batch", err)
		return
	}
	writeJSON(w, http.StatusOK, AskBatchResponse{Answers: answers})
}

// Search handles GET /api/search.
//
//	@Summary		Rank entries against a query
//	@Tags			ask
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// ListEntries handles GET /api/entries.
//
//	@Summary		List the entries of the active snapshot
//	@Tags			entries
//	@Produce		json
//	@Success		200	{object}	EntryListResponse
//	@Failure		503	{object}	unavailableResponse
//	@Security		BearerAuth
//	@Router			/entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListEntries(r.Context())
	if err != nil {
		writeServiceError(w, "list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: items, Total: len(items)})
}

// GetEntry handles GET /api/entries/{id}.
//
//	@Summary		Get a single entry by id
//	@Tags			entries
//	@Produce		json
//	@Param			id	path		int	true	"Entry id"
//	@Success		200	{object}	EntryDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody("id must be a positive integer"))
		return
	}
	entry, err := h.svc.GetEntry(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Status handles GET /api/status.
//
//	@Summary		Describe the active snapshot
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	Status
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status(r.Context()))
}

// Reload handles POST /api/reload.
//
//	@Summary		Rebuild the knowledge base from its source
//	@Tags			admin
//	@Produce		json
//	@Param			force	query		bool	false	"Rebuild even if the document is unchanged"
//	@Success		200		{object}	ReloadResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reload [post]
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	ev, err := h.svc.Reload(r.Context(), force)
	if err != nil {
		writeServiceError(w, "reload", err)
		return
	}
	writeJSON(w, http.StatusOK, reloadResponse(ev))
}

func reloadResponse(ev reload.Event) ReloadResponse {
	return ReloadResponse{
		Kind:       string(ev.Kind),
		Generation: ev.Generation,
		Checksum:   ev.Checksum,
		Entries:    ev.Entries,
		Dropped:    ev.Dropped,
		Warnings:   len(ev.Warnings),
	}
}

// ListGenerations handles GET /api/generations.
//
//	@Summary		List recorded builds, newest first
//	@Tags			admin
//	@Produce		json
//	@Param			limit	query		int	false	"Max results"
//	@Success		200		{object}	GenerationListResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/generations [get]
func (h *Handler) ListGenerations(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	gens, err := h.svc.Generations(r.Context(), limit)
	if err != nil {
		writeServiceError(w, "list generations", err)
		return
	}
	writeJSON(w, http.StatusOK, GenerationListResponse{Generations: gens})
}

// GetGeneration handles GET /api/generations/{id}.
//
//	@Summary		Get a recorded build with its entries and warnings
//	@Tags			admin
//	@Produce		json
//	@Param			id	path		int	true	"Generation id"
//	@Success		200	{object}	GenerationDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/generations/{id} [get]
func (h *Handler) GetGeneration(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody("id must be a positive integer"))
		return
	}
	g, err := h.svc.Generation(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get generation", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
