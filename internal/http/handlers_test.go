package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/event-booking/internal/application"
	"github.com/example/event-booking/internal/testfixtures"
)

type apiHarness struct {
	server   *httptest.Server
	db       *testfixtures.SQLiteHarness
	services testfixtures.Services
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()

	db := testfixtures.NewSQLiteHarness(t)
	services := testfixtures.NewServiceFactory().Build(db.Adapters)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := NewRouter(RouterConfig{
		Auth:       NewAuthHandler(services.Auth, logger),
		Users:      NewUserHandler(services.Users, logger),
		Rooms:      NewRoomHandler(services.Rooms, logger),
		Employees:  NewEmployeeHandler(services.Employees, logger),
		Lookups:    NewLookupHandler(services.Lookups, logger),
		Events:     NewEventHandler(services.Events, services.Queries, time.UTC, logger),
		Reports:    NewReportHandler(services.Scheduler, services.Queries, logger),
		Session:    RequireSession(services.Auth, logger),
		Middleware: []func(http.Handler) http.Handler{RequestLogger(logger)},
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &apiHarness{server: server, db: db, services: services}
}

func (h *apiHarness) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, h.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (h *apiHarness) login(t *testing.T, user testfixtures.UserFixture) string {
	t.Helper()

	resp := h.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: user.Email, Password: user.Password})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var body loginResponse
	decodeBody(t, resp, &body)
	if body.Token == "" || resp.Header.Get("X-Session-Token") != body.Token {
		t.Fatalf("expected session token in body and header, got %+v", body)
	}
	return body.Token
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func eventPayload(roomID string, start, end time.Time, employees ...string) map[string]any {
	return map[string]any{
		"name":             "Spring conference",
		"start":            start.Format(time.RFC3339),
		"end":              end.Format(time.RFC3339),
		"max_participants": 40,
		"event_type_id":    testfixtures.EventTypeConference,
		"room_id":          roomID,
		"employee_ids":     employees,
	}
}

func TestAuthRoutes(t *testing.T) {
	h := newAPIHarness(t)
	user := h.db.AddUser(testfixtures.NewUserFixture())

	t.Run("protected routes require a session", func(t *testing.T) {
		resp := h.do(t, http.MethodGet, "/api/rooms", "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Fatal("expected a request id header")
		}
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		resp := h.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: user.Email, Password: "nope"})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
		var body errorResponse
		decodeBody(t, resp, &body)
		if body.ErrorCode != "AUTH_INVALID_CREDENTIALS" {
			t.Fatalf("error code = %q", body.ErrorCode)
		}
	})

	t.Run("login then logout", func(t *testing.T) {
		token := h.login(t, user)

		if resp := h.do(t, http.MethodGet, "/api/rooms", token, nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("list rooms status = %d", resp.StatusCode)
		}
		if resp := h.do(t, http.MethodPost, "/api/auth/logout", token, nil); resp.StatusCode != http.StatusNoContent {
			t.Fatalf("logout status = %d", resp.StatusCode)
		}
		if resp := h.do(t, http.MethodGet, "/api/rooms", token, nil); resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("revoked session status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("password reset request is public and does not leak accounts", func(t *testing.T) {
		for _, email := range []string{user.Email, "ghost@example.com"} {
			resp := h.do(t, http.MethodPost, "/api/auth/password-reset", "", passwordResetRequest{Email: email})
			if resp.StatusCode != http.StatusAccepted {
				t.Fatalf("reset for %s status = %d", email, resp.StatusCode)
			}
		}
		if h.services.Mailbox.Len() != 1 {
			t.Fatalf("expected one reset message, got %d", h.services.Mailbox.Len())
		}

		msg, _ := h.services.Mailbox.Last()
		resp := h.do(t, http.MethodPost, "/api/auth/password-reset/confirm", "", passwordResetConfirmRequest{Token: msg.Token, Password: "brand-new-pass"})
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("confirm status = %d", resp.StatusCode)
		}
		resp = h.do(t, http.MethodPost, "/api/auth/password-reset/confirm", "", passwordResetConfirmRequest{Token: msg.Token, Password: "brand-new-pass"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("reused token status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestEventRoutes(t *testing.T) {
	h := newAPIHarness(t)
	organizer := h.db.AddUser(testfixtures.NewUserFixture(testfixtures.WithUserRoles(application.RoleOrganizer)))
	visitor := h.db.AddUser(testfixtures.NewUserFixture())
	room := h.db.AddRoom(testfixtures.NewRoomFixture())
	host := h.db.AddEmployee(testfixtures.NewEmployeeFixture())

	token := h.login(t, organizer)
	start := testfixtures.ReferenceTime().Add(48 * time.Hour)

	resp := h.do(t, http.MethodPost, "/api/events", token, eventPayload(room.ID, start, start.Add(2*time.Hour), host.ID))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created eventResponse
	decodeBody(t, resp, &created)
	if created.Event.RoomID != room.ID || len(created.Event.EmployeeIDs) != 1 || created.Event.OrganizerID != organizer.ID {
		t.Fatalf("unexpected event %+v", created.Event)
	}
	eventID := created.Event.ID

	t.Run("overlapping booking is rejected with the conflicting event", func(t *testing.T) {
		resp := h.do(t, http.MethodPost, "/api/events", token, eventPayload(room.ID, start.Add(time.Hour), start.Add(3*time.Hour)))
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("status = %d, want 409", resp.StatusCode)
		}
		var body errorResponse
		decodeBody(t, resp, &body)
		if body.Conflict == nil || body.Conflict.ConflictingEventID != eventID || body.Conflict.ResourceID != room.ID {
			t.Fatalf("unexpected conflict payload %+v", body)
		}
	})

	t.Run("touching window is accepted", func(t *testing.T) {
		resp := h.do(t, http.MethodPost, "/api/events", token, eventPayload(room.ID, start.Add(2*time.Hour), start.Add(4*time.Hour)))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want 201", resp.StatusCode)
		}
	})

	t.Run("conflict preview lists the blocking booking", func(t *testing.T) {
		resp := h.do(t, http.MethodPost, "/api/bookings/conflicts", token, conflictsRequest{
			Kind:       "employee",
			ResourceID: host.ID,
			Start:      start.Add(30 * time.Minute).Format(time.RFC3339),
			End:        start.Add(90 * time.Minute).Format(time.RFC3339),
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var body conflictsResponse
		decodeBody(t, resp, &body)
		if len(body.Conflicts) != 1 || body.Conflicts[0].EventID != eventID {
			t.Fatalf("unexpected conflicts %+v", body.Conflicts)
		}
	})

	t.Run("visitors cannot mutate events", func(t *testing.T) {
		visitorToken := h.login(t, visitor)
		resp := h.do(t, http.MethodDelete, "/api/events/"+eventID, visitorToken, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("date filter and upcoming listing", func(t *testing.T) {
		resp := h.do(t, http.MethodGet, "/api/events?date="+start.Format(dateLayout)+"&type="+testfixtures.EventTypeConference, token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("filter status = %d", resp.StatusCode)
		}
		var filtered eventSummariesResponse
		decodeBody(t, resp, &filtered)
		if len(filtered.Events) != 2 || filtered.Events[0].ID != eventID || filtered.Events[0].RoomName != room.Name {
			t.Fatalf("unexpected filtered events %+v", filtered.Events)
		}

		resp = h.do(t, http.MethodGet, "/api/events/upcoming?limit=1", token, nil)
		var upcoming eventSummariesResponse
		decodeBody(t, resp, &upcoming)
		if len(upcoming.Events) != 1 || upcoming.Events[0].ID != eventID {
			t.Fatalf("unexpected upcoming events %+v", upcoming.Events)
		}

		if resp := h.do(t, http.MethodGet, "/api/events/upcoming?limit=zero", token, nil); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("bad limit status = %d", resp.StatusCode)
		}
		if resp := h.do(t, http.MethodGet, "/api/events?date=04/03/2025", token, nil); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("bad date status = %d", resp.StatusCode)
		}
	})

	t.Run("room calendar feed", func(t *testing.T) {
		resp := h.do(t, http.MethodGet, "/api/rooms/"+room.ID+"/calendar.ics", token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
			t.Fatalf("content type = %q", ct)
		}
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if !strings.Contains(string(raw), "BEGIN:VCALENDAR") || !strings.Contains(string(raw), eventID+"@") {
			t.Fatalf("unexpected calendar body:\n%s", raw)
		}
	})

	t.Run("participants can be removed", func(t *testing.T) {
		resp := h.do(t, http.MethodDelete, "/api/events/"+eventID+"/participants/"+host.ID, token, nil)
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		resp = h.do(t, http.MethodGet, "/api/events/"+eventID, token, nil)
		var body eventResponse
		decodeBody(t, resp, &body)
		if len(body.Event.EmployeeIDs) != 0 {
			t.Fatalf("expected no employees, got %v", body.Event.EmployeeIDs)
		}
	})

	t.Run("profile counts organized events", func(t *testing.T) {
		resp := h.do(t, http.MethodGet, "/api/profile", token, nil)
		var body profileResponse
		decodeBody(t, resp, &body)
		if body.UserID != organizer.ID || body.OrganizedCount != 2 {
			t.Fatalf("unexpected profile %+v", body)
		}
	})
}

func TestLookupRoutes(t *testing.T) {
	h := newAPIHarness(t)
	admin := h.db.AddUser(testfixtures.NewUserFixture(testfixtures.WithUserRoles(application.RoleAdmin)))
	token := h.login(t, admin)

	if resp := h.do(t, http.MethodGet, "/api/lookups/colours", token, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown kind status = %d, want 404", resp.StatusCode)
	}

	resp := h.do(t, http.MethodGet, "/api/lookups/event-statuses", token, nil)
	var statuses lookupsResponse
	decodeBody(t, resp, &statuses)
	found := false
	for _, item := range statuses.Items {
		if item.ID == application.EventStatusPlanned {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the planned status among %+v", statuses.Items)
	}

	resp = h.do(t, http.MethodPost, "/api/lookups/positions", token, lookupRequest{Name: "Sound engineer"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create position status = %d", resp.StatusCode)
	}
	var created lookupResponse
	decodeBody(t, resp, &created)
	if created.Item.Name != "Sound engineer" || created.Item.Kind != string(application.LookupPosition) {
		t.Fatalf("unexpected lookup %+v", created.Item)
	}
}

func TestUserRoutesRequireAdmin(t *testing.T) {
	h := newAPIHarness(t)
	organizer := h.db.AddUser(testfixtures.NewUserFixture(testfixtures.WithUserRoles(application.RoleOrganizer)))
	admin := h.db.AddUser(testfixtures.NewUserFixture(testfixtures.WithUserRoles(application.RoleAdmin)))

	payload := userRequest{Email: "new@example.com", DisplayName: "New", Roles: []string{"user"}, Password: "password-456"}

	if resp := h.do(t, http.MethodPost, "/api/users", h.login(t, organizer), payload); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("organizer status = %d, want 403", resp.StatusCode)
	}

	resp := h.do(t, http.MethodPost, "/api/users", h.login(t, admin), payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin status = %d", resp.StatusCode)
	}
	var body userResponse
	decodeBody(t, resp, &body)
	if body.User.Email != "new@example.com" || len(body.User.Roles) != 1 || body.User.Roles[0] != "user" {
		t.Fatalf("unexpected user %+v", body.User)
	}
}

func TestProfileRoutes(t *testing.T) {
	h := newAPIHarness(t)
	user := h.db.AddUser(testfixtures.NewUserFixture())
	token := h.login(t, user)

	t.Run("updates own profile", func(t *testing.T) {
		resp := h.do(t, http.MethodPut, "/api/profile", token, profileRequest{Email: "renamed@example.com", DisplayName: "Renamed"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var body userResponse
		decodeBody(t, resp, &body)
		if body.User.ID != user.ID || body.User.Email != "renamed@example.com" || body.User.DisplayName != "Renamed" {
			t.Fatalf("unexpected user %+v", body.User)
		}
		if len(body.User.Roles) != 1 || body.User.Roles[0] != "user" {
			t.Fatalf("expected roles to be kept, got %v", body.User.Roles)
		}
	})

	t.Run("rejects a wrong current password", func(t *testing.T) {
		resp := h.do(t, http.MethodPost, "/api/profile/password", token, changePasswordRequest{
			CurrentPassword: "not-it",
			NewPassword:     "password-789",
			ConfirmPassword: "password-789",
		})
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", resp.StatusCode)
		}
		var body errorResponse
		decodeBody(t, resp, &body)
		if _, ok := body.Errors["current_password"]; !ok {
			t.Fatalf("expected current_password error, got %v", body.Errors)
		}
	})

	t.Run("changes the password", func(t *testing.T) {
		resp := h.do(t, http.MethodPost, "/api/profile/password", token, changePasswordRequest{
			CurrentPassword: user.Password,
			NewPassword:     "password-789",
			ConfirmPassword: "password-789",
		})
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", resp.StatusCode)
		}

		old := h.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "renamed@example.com", Password: user.Password})
		if old.StatusCode != http.StatusUnauthorized {
			t.Fatalf("old password status = %d, want 401", old.StatusCode)
		}
		fresh := h.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "renamed@example.com", Password: "password-789"})
		if fresh.StatusCode != http.StatusCreated {
			t.Fatalf("new password status = %d, want 201", fresh.StatusCode)
		}
	})

	t.Run("requires a session", func(t *testing.T) {
		resp := h.do(t, http.MethodPut, "/api/profile", "", profileRequest{Email: "x@example.com", DisplayName: "X"})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
	})
}
