package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/event-booking/internal/application"
)

const dateLayout = "2006-01-02"

type eventService interface {
	CreateEvent(ctx context.Context, params application.CreateEventParams) (application.Event, error)
	UpdateEvent(ctx context.Context, params application.UpdateEventParams) (application.Event, error)
	DeleteEvent(ctx context.Context, principal application.Principal, eventID string) error
	GetEvent(ctx context.Context, principal application.Principal, eventID string) (application.Event, error)
	AddParticipants(ctx context.Context, params application.ParticipantsParams) (application.Event, error)
	RemoveParticipant(ctx context.Context, principal application.Principal, eventID, employeeID string) error
}

type eventQueries interface {
	UpcomingEvents(ctx context.Context, limit int) ([]application.EventSummary, error)
	FilterEvents(ctx context.Context, params application.FilterEventsParams) ([]application.EventSummary, error)
}

// EventHandler serves event CRUD, participants and the event listings.
type EventHandler struct {
	service   eventService
	queries   eventQueries
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

// NewEventHandler builds an event handler. Dates in the listing filter are
// read in location, UTC when nil.
func NewEventHandler(service eventService, queries eventQueries, location *time.Location, logger *slog.Logger) *EventHandler {
	base := defaultLogger(logger)
	if location == nil {
		location = time.UTC
	}
	return &EventHandler{service: service, queries: queries, location: location, responder: newResponder(base), logger: base}
}

func (h *EventHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EventHandler", operation, attrs...)
}

// List filters events by the optional date, type and status query parameters.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.queries == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	params := application.FilterEventsParams{
		EventTypeID: strings.TrimSpace(q.Get("type")),
		StatusID:    strings.TrimSpace(q.Get("status")),
	}
	if raw := strings.TrimSpace(q.Get("date")); raw != "" {
		day, err := time.ParseInLocation(dateLayout, raw, h.location)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
			return
		}
		params.Date = &day
	}

	events, err := h.queries.FilterEvents(r.Context(), params)
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "event listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventSummariesResponse{Events: toEventSummaryDTOs(events)})
}

// Upcoming returns the next events; limit defaults to three.
func (h *EventHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.queries == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidLimit)
			return
		}
		limit = n
	}

	events, err := h.queries.UpcomingEvents(r.Context(), limit)
	if err != nil {
		h.log(r.Context(), "Upcoming", "limit", limit).ErrorContext(r.Context(), "upcoming listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventSummariesResponse{Events: toEventSummaryDTOs(events)})
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode event request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)
	event, err := h.service.CreateEvent(r.Context(), application.CreateEventParams{Principal: principal, Input: input})
	if err != nil {
		logger.ErrorContext(r.Context(), "event creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("event_id", event.ID).InfoContext(r.Context(), "event created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	eventID := strings.TrimSpace(r.PathValue("id"))

	event, err := h.service.GetEvent(r.Context(), principal, eventID)
	if err != nil {
		h.log(r.Context(), "Get", "event_id", eventID).ErrorContext(r.Context(), "event lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	eventID := strings.TrimSpace(r.PathValue("id"))

	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Update", "event_id", eventID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode event request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "event_id", eventID)
	event, err := h.service.UpdateEvent(r.Context(), application.UpdateEventParams{
		Principal: principal,
		EventID:   eventID,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "event update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "event updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	eventID := strings.TrimSpace(r.PathValue("id"))
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "event_id", eventID)

	if err := h.service.DeleteEvent(r.Context(), principal, eventID); err != nil {
		logger.ErrorContext(r.Context(), "event deletion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "event deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// AddParticipants books additional employees for the event.
func (h *EventHandler) AddParticipants(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	eventID := strings.TrimSpace(r.PathValue("id"))

	var req participantsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "AddParticipants", "principal_id", principal.UserID, "event_id", eventID)
	event, err := h.service.AddParticipants(r.Context(), application.ParticipantsParams{
		Principal:   principal,
		EventID:     eventID,
		EmployeeIDs: req.EmployeeIDs,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "adding participants failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "participants added", "count", len(req.EmployeeIDs))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	eventID := strings.TrimSpace(r.PathValue("id"))
	employeeID := strings.TrimSpace(r.PathValue("employeeId"))
	logger := h.log(r.Context(), "RemoveParticipant", "principal_id", principal.UserID, "event_id", eventID, "employee_id", employeeID)

	if err := h.service.RemoveParticipant(r.Context(), principal, eventID, employeeID); err != nil {
		logger.ErrorContext(r.Context(), "removing participant failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "participant removed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type eventRequest struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Start           string   `json:"start"`
	End             string   `json:"end"`
	MaxParticipants int      `json:"max_participants"`
	EventTypeID     string   `json:"event_type_id"`
	StatusID        string   `json:"status_id"`
	AgeCategoryID   *string  `json:"age_category_id"`
	RoomID          string   `json:"room_id"`
	EmployeeIDs     []string `json:"employee_ids"`
}

func (r eventRequest) toInput() (application.EventInput, error) {
	start, err := parseTime(r.Start)
	if err != nil {
		return application.EventInput{}, err
	}
	end, err := parseTime(r.End)
	if err != nil {
		return application.EventInput{}, err
	}

	input := application.EventInput{
		Name:            strings.TrimSpace(r.Name),
		Description:     strings.TrimSpace(r.Description),
		Start:           start,
		End:             end,
		MaxParticipants: r.MaxParticipants,
		EventTypeID:     strings.TrimSpace(r.EventTypeID),
		StatusID:        strings.TrimSpace(r.StatusID),
		AgeCategoryID:   trimmedPtr(r.AgeCategoryID),
		RoomID:          strings.TrimSpace(r.RoomID),
	}
	if input.AgeCategoryID != nil && *input.AgeCategoryID == "" {
		input.AgeCategoryID = nil
	}
	for _, id := range r.EmployeeIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			input.EmployeeIDs = append(input.EmployeeIDs, trimmed)
		}
	}
	return input, nil
}

type participantsRequest struct {
	EmployeeIDs []string `json:"employee_ids"`
}

type eventDTO struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Start           string   `json:"start"`
	End             string   `json:"end"`
	MaxParticipants int      `json:"max_participants"`
	OrganizerID     string   `json:"organizer_id"`
	StatusID        string   `json:"status_id"`
	EventTypeID     string   `json:"event_type_id"`
	AgeCategoryID   *string  `json:"age_category_id,omitempty"`
	RoomID          string   `json:"room_id"`
	EmployeeIDs     []string `json:"employee_ids"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

type eventResponse struct {
	Event eventDTO `json:"event"`
}

func toEventDTO(event application.Event) eventDTO {
	employees := event.EmployeeIDs
	if employees == nil {
		employees = []string{}
	}
	return eventDTO{
		ID:              event.ID,
		Name:            event.Name,
		Description:     event.Description,
		Start:           formatTime(event.Start),
		End:             formatTime(event.End),
		MaxParticipants: event.MaxParticipants,
		OrganizerID:     event.OrganizerID,
		StatusID:        event.StatusID,
		EventTypeID:     event.EventTypeID,
		AgeCategoryID:   event.AgeCategoryID,
		RoomID:          event.RoomID,
		EmployeeIDs:     employees,
		CreatedAt:       formatTime(event.CreatedAt),
		UpdatedAt:       formatTime(event.UpdatedAt),
	}
}

type eventSummaryDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Start           string `json:"start"`
	End             string `json:"end"`
	MaxParticipants int    `json:"max_participants"`
	OrganizerID     string `json:"organizer_id"`
	RoomID          string `json:"room_id"`
	RoomName        string `json:"room_name"`
	EventType       string `json:"event_type"`
	Status          string `json:"status"`
	AgeCategory     string `json:"age_category,omitempty"`
}

type eventSummariesResponse struct {
	Events []eventSummaryDTO `json:"events"`
}

func toEventSummaryDTOs(events []application.EventSummary) []eventSummaryDTO {
	out := make([]eventSummaryDTO, 0, len(events))
	for _, e := range events {
		out = append(out, eventSummaryDTO{
			ID:              e.ID,
			Name:            e.Name,
			Description:     e.Description,
			Start:           formatTime(e.Start),
			End:             formatTime(e.End),
			MaxParticipants: e.MaxParticipants,
			OrganizerID:     e.OrganizerID,
			RoomID:          e.RoomID,
			RoomName:        e.RoomName,
			EventType:       e.EventTypeName,
			Status:          e.StatusName,
			AgeCategory:     e.AgeCategoryName,
		})
	}
	return out
}
