package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/event-booking/internal/application"
)

// lookupKindsByPath maps URL segments onto lookup kinds.
var lookupKindsByPath = map[string]application.LookupKind{
	"room-types":     application.LookupRoomType,
	"positions":      application.LookupPosition,
	"age-categories": application.LookupAgeCategory,
	"event-statuses": application.LookupEventStatus,
	"event-types":    application.LookupEventType,
}

type lookupService interface {
	CreateLookup(ctx context.Context, principal application.Principal, kind application.LookupKind, input application.LookupInput) (application.Lookup, error)
	UpdateLookup(ctx context.Context, principal application.Principal, kind application.LookupKind, id string, input application.LookupInput) (application.Lookup, error)
	DeleteLookup(ctx context.Context, principal application.Principal, kind application.LookupKind, id string) error
	GetLookup(ctx context.Context, kind application.LookupKind, id string) (application.Lookup, error)
	ListLookups(ctx context.Context, kind application.LookupKind) ([]application.Lookup, error)
}

// LookupHandler serves the reference tables: room types, positions, age
// categories, event statuses and event types.
type LookupHandler struct {
	service   lookupService
	responder responder
	logger    *slog.Logger
}

func NewLookupHandler(service lookupService, logger *slog.Logger) *LookupHandler {
	base := defaultLogger(logger)
	return &LookupHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *LookupHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "LookupHandler", operation, attrs...)
}

func (h *LookupHandler) kind(w http.ResponseWriter, r *http.Request) (application.LookupKind, bool) {
	kind, ok := lookupKindsByPath[r.PathValue("kind")]
	if !ok {
		h.responder.writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{ErrorCode: "NOT_FOUND", Message: errUnknownLookupKind.Error()})
	}
	return kind, ok
}

func (h *LookupHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}

	lookups, err := h.service.ListLookups(r.Context(), kind)
	if err != nil {
		h.log(r.Context(), "List", "kind", kind).ErrorContext(r.Context(), "lookup listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := lookupsResponse{Items: make([]lookupDTO, 0, len(lookups))}
	for _, lookup := range lookups {
		resp.Items = append(resp.Items, toLookupDTO(lookup))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *LookupHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}

	var req lookupRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "kind", kind, "principal_id", principal.UserID)

	lookup, err := h.service.CreateLookup(r.Context(), principal, kind, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "lookup creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("lookup_id", lookup.ID).InfoContext(r.Context(), "lookup created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, lookupResponse{Item: toLookupDTO(lookup)})
}

func (h *LookupHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	lookup, err := h.service.GetLookup(r.Context(), kind, id)
	if err != nil {
		h.log(r.Context(), "Get", "kind", kind, "lookup_id", id).ErrorContext(r.Context(), "lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, lookupResponse{Item: toLookupDTO(lookup)})
}

func (h *LookupHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}

	var req lookupRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	id := strings.TrimSpace(r.PathValue("id"))
	logger := h.log(r.Context(), "Update", "kind", kind, "lookup_id", id, "principal_id", principal.UserID)

	lookup, err := h.service.UpdateLookup(r.Context(), principal, kind, id, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "lookup update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "lookup updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, lookupResponse{Item: toLookupDTO(lookup)})
}

func (h *LookupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	id := strings.TrimSpace(r.PathValue("id"))
	logger := h.log(r.Context(), "Delete", "kind", kind, "lookup_id", id, "principal_id", principal.UserID)

	if err := h.service.DeleteLookup(r.Context(), principal, kind, id); err != nil {
		logger.ErrorContext(r.Context(), "lookup deletion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "lookup deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type lookupRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	MinAge   int    `json:"min_age"`
}

func (r lookupRequest) toInput() application.LookupInput {
	return application.LookupInput{
		Name:     strings.TrimSpace(r.Name),
		Category: strings.TrimSpace(r.Category),
		MinAge:   r.MinAge,
	}
}

type lookupDTO struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	MinAge   *int   `json:"min_age,omitempty"`
}

type lookupResponse struct {
	Item lookupDTO `json:"item"`
}

type lookupsResponse struct {
	Items []lookupDTO `json:"items"`
}

func toLookupDTO(lookup application.Lookup) lookupDTO {
	dto := lookupDTO{
		ID:       lookup.ID,
		Kind:     string(lookup.Kind),
		Name:     lookup.Name,
		Category: lookup.Category,
	}
	if lookup.Kind == application.LookupAgeCategory {
		minAge := lookup.MinAge
		dto.MinAge = &minAge
	}
	return dto
}
