package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/event-booking/internal/application"
	"github.com/example/event-booking/internal/calendar"
)

type roomService interface {
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error)
	DeleteRoom(ctx context.Context, principal application.Principal, roomID string) error
	RoomDetails(ctx context.Context, principal application.Principal, roomID string) (application.RoomDetails, error)
	ListRooms(ctx context.Context, principal application.Principal) ([]application.Room, error)
}

// RoomHandler serves the room catalog.
type RoomHandler struct {
	service   roomService
	responder responder
	logger    *slog.Logger
	now       func() time.Time
}

func NewRoomHandler(service roomService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, responder: newResponder(base), logger: base, now: time.Now}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	rooms, err := h.service.ListRooms(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List", "principal_id", principal.UserID).ErrorContext(r.Context(), "room listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := roomsResponse{Rooms: make([]roomDTO, 0, len(rooms))}
	for _, room := range rooms {
		resp.Rooms = append(resp.Rooms, toRoomDTO(room))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req roomRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode room request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	room, err := h.service.CreateRoom(r.Context(), application.CreateRoomParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "room creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("room_id", room.ID).InfoContext(r.Context(), "room created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, roomResponse{Room: toRoomDTO(room)})
}

// Get returns the room together with the events booked into it.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	roomID := strings.TrimSpace(r.PathValue("id"))

	details, err := h.service.RoomDetails(r.Context(), principal, roomID)
	if err != nil {
		h.log(r.Context(), "Get", "room_id", roomID).ErrorContext(r.Context(), "room lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomDetailsResponse{
		Room:   toRoomDTO(details.Room),
		Events: toEventSummaryDTOs(details.Events),
	})
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	roomID := strings.TrimSpace(r.PathValue("id"))

	var req roomRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Update", "room_id", roomID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode room request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "room_id", roomID)

	room, err := h.service.UpdateRoom(r.Context(), application.UpdateRoomParams{
		Principal: principal,
		RoomID:    roomID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "room update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	roomID := strings.TrimSpace(r.PathValue("id"))
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "room_id", roomID)

	if err := h.service.DeleteRoom(r.Context(), principal, roomID); err != nil {
		logger.ErrorContext(r.Context(), "room deletion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Calendar exports the room's events as an iCalendar feed.
func (h *RoomHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	roomID := strings.TrimSpace(r.PathValue("id"))
	logger := h.log(r.Context(), "Calendar", "room_id", roomID)

	details, err := h.service.RoomDetails(r.Context(), principal, roomID)
	if err != nil {
		logger.ErrorContext(r.Context(), "room lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	feed := calendar.Feed{Name: details.Room.Name, Entries: make([]calendar.Entry, 0, len(details.Events))}
	for _, event := range details.Events {
		feed.Entries = append(feed.Entries, calendar.Entry{
			EventID:     event.ID,
			Summary:     event.Name,
			Description: event.Description,
			Location:    details.Room.Name,
			Organizer:   event.OrganizerID,
			Start:       event.Start,
			End:         event.End,
		})
	}

	var buf bytes.Buffer
	if err := calendar.Encode(&buf, feed, h.now()); err != nil {
		logger.ErrorContext(r.Context(), "calendar encoding failed", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type roomRequest struct {
	Name        string  `json:"name"`
	RoomTypeID  string  `json:"room_type_id"`
	Capacity    int     `json:"capacity"`
	Address     string  `json:"address"`
	Description *string `json:"description"`
	IsExternal  bool    `json:"is_external"`
	ExternalURL *string `json:"external_url"`
}

func (r roomRequest) toInput() application.RoomInput {
	return application.RoomInput{
		Name:        strings.TrimSpace(r.Name),
		RoomTypeID:  strings.TrimSpace(r.RoomTypeID),
		Capacity:    r.Capacity,
		Address:     strings.TrimSpace(r.Address),
		Description: trimmedPtr(r.Description),
		IsExternal:  r.IsExternal,
		ExternalURL: trimmedPtr(r.ExternalURL),
	}
}

type roomDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	RoomTypeID  string  `json:"room_type_id"`
	Capacity    int     `json:"capacity"`
	Address     string  `json:"address"`
	Description *string `json:"description,omitempty"`
	IsExternal  bool    `json:"is_external"`
	ExternalURL *string `json:"external_url,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type roomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type roomDetailsResponse struct {
	Room   roomDTO           `json:"room"`
	Events []eventSummaryDTO `json:"events"`
}

func toRoomDTO(room application.Room) roomDTO {
	return roomDTO{
		ID:          room.ID,
		Name:        room.Name,
		RoomTypeID:  room.RoomTypeID,
		Capacity:    room.Capacity,
		Address:     room.Address,
		Description: room.Description,
		IsExternal:  room.IsExternal,
		ExternalURL: room.ExternalURL,
		CreatedAt:   formatTime(room.CreatedAt),
		UpdatedAt:   formatTime(room.UpdatedAt),
	}
}
