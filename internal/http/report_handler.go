package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/event-booking/internal/application"
	"github.com/example/event-booking/internal/scheduler"
)

type conflictPreviewer interface {
	ListConflicts(ctx context.Context, q application.ConflictQuery) ([]application.Booking, error)
}

type reportService interface {
	ActivityReport(ctx context.Context, params application.ActivityReportParams) ([]application.EventSummary, error)
	OrganizerProfile(ctx context.Context, principal application.Principal, userID string) (application.OrganizerProfile, error)
}

// ReportHandler serves the conflict preview, the activity report and the
// organizer profile.
type ReportHandler struct {
	bookings  conflictPreviewer
	reports   reportService
	responder responder
	logger    *slog.Logger
}

func NewReportHandler(bookings conflictPreviewer, reports reportService, logger *slog.Logger) *ReportHandler {
	base := defaultLogger(logger)
	return &ReportHandler{bookings: bookings, reports: reports, responder: newResponder(base), logger: base}
}

func (h *ReportHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReportHandler", operation, attrs...)
}

// Conflicts lists the bookings that would block reserving a resource.
func (h *ReportHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.bookings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req conflictsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	start, err := parseTime(req.Start)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	end, err := parseTime(req.End)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	kind := scheduler.ResourceKind(strings.ToLower(strings.TrimSpace(req.Kind)))
	resourceID := strings.TrimSpace(req.ResourceID)
	logger := h.log(r.Context(), "Conflicts", "kind", kind, "resource_id", resourceID)

	bookings, err := h.bookings.ListConflicts(r.Context(), application.ConflictQuery{
		Kind:           kind,
		ResourceID:     resourceID,
		Start:          start,
		End:            end,
		ExcludeEventID: strings.TrimSpace(req.ExcludeEventID),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "conflict preview failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := conflictsResponse{Conflicts: make([]bookingDTO, 0, len(bookings))}
	for _, b := range bookings {
		resp.Conflicts = append(resp.Conflicts, bookingDTO{
			EventID:    b.EventID,
			Kind:       string(b.Kind),
			ResourceID: b.ResourceID,
			Start:      formatTime(b.Start),
			End:        formatTime(b.End),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *ReportHandler) Activity(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.reports == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req activityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	from, err := parseTime(req.From)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	to, err := parseTime(req.To)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Activity", "principal_id", principal.UserID)

	events, err := h.reports.ActivityReport(r.Context(), application.ActivityReportParams{
		Principal:       principal,
		From:            from,
		To:              to,
		EventID:         req.EventID,
		RoomID:          req.RoomID,
		EmployeeID:      req.EmployeeID,
		MinParticipants: req.MinParticipants,
		AgeCategoryID:   req.AgeCategoryID,
		StatusID:        req.StatusID,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "activity report failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "activity report built", "count", len(events))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventSummariesResponse{Events: toEventSummaryDTOs(events)})
}

// Profile reports the events organized by the caller, or by user_id for admins.
func (h *ReportHandler) Profile(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.reports == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))

	profile, err := h.reports.OrganizerProfile(r.Context(), principal, userID)
	if err != nil {
		h.log(r.Context(), "Profile", "principal_id", principal.UserID, "user_id", userID).ErrorContext(r.Context(), "profile lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, profileResponse{
		UserID:         profile.UserID,
		OrganizedCount: profile.OrganizedCount,
		RecentEvents:   toEventSummaryDTOs(profile.RecentEvents),
	})
}

type conflictsRequest struct {
	Kind           string `json:"kind"`
	ResourceID     string `json:"resource_id"`
	Start          string `json:"start"`
	End            string `json:"end"`
	ExcludeEventID string `json:"exclude_event_id"`
}

type bookingDTO struct {
	EventID    string `json:"event_id"`
	Kind       string `json:"kind"`
	ResourceID string `json:"resource_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

type conflictsResponse struct {
	Conflicts []bookingDTO `json:"conflicts"`
}

type activityRequest struct {
	From            string `json:"from"`
	To              string `json:"to"`
	EventID         string `json:"event_id"`
	RoomID          string `json:"room_id"`
	EmployeeID      string `json:"employee_id"`
	MinParticipants *int   `json:"min_participants"`
	AgeCategoryID   string `json:"age_category_id"`
	StatusID        string `json:"status_id"`
}

type profileResponse struct {
	UserID         string            `json:"user_id"`
	OrganizedCount int               `json:"organized_count"`
	RecentEvents   []eventSummaryDTO `json:"recent_events"`
}
