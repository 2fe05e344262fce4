package http

import (
	"net/http"
)

// RouterConfig lists the handlers mounted by NewRouter. Nil handlers leave
// their routes unregistered.
type RouterConfig struct {
	Auth      *AuthHandler
	Users     *UserHandler
	Rooms     *RoomHandler
	Employees *EmployeeHandler
	Lookups   *LookupHandler
	Events    *EventHandler
	Reports   *ReportHandler
	// Session guards every route except sign in and password resets.
	Session    func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	protect := func(h http.HandlerFunc) http.Handler {
		if cfg.Session == nil {
			return h
		}
		return cfg.Session(h)
	}

	if cfg.Auth != nil {
		mux.HandleFunc("POST /api/auth/login", cfg.Auth.Login)
		mux.HandleFunc("POST /api/auth/password-reset", cfg.Auth.RequestPasswordReset)
		mux.HandleFunc("POST /api/auth/password-reset/confirm", cfg.Auth.ConfirmPasswordReset)
		mux.Handle("POST /api/auth/logout", protect(cfg.Auth.Logout))
		mux.Handle("POST /api/profile/password", protect(cfg.Auth.ChangePassword))
	}

	if cfg.Rooms != nil {
		mux.Handle("GET /api/rooms", protect(cfg.Rooms.List))
		mux.Handle("POST /api/rooms", protect(cfg.Rooms.Create))
		mux.Handle("GET /api/rooms/{id}", protect(cfg.Rooms.Get))
		mux.Handle("PUT /api/rooms/{id}", protect(cfg.Rooms.Update))
		mux.Handle("DELETE /api/rooms/{id}", protect(cfg.Rooms.Delete))
		mux.Handle("GET /api/rooms/{id}/calendar.ics", protect(cfg.Rooms.Calendar))
	}

	if cfg.Employees != nil {
		mux.Handle("GET /api/employees", protect(cfg.Employees.List))
		mux.Handle("POST /api/employees", protect(cfg.Employees.Create))
		mux.Handle("GET /api/employees/{id}", protect(cfg.Employees.Get))
		mux.Handle("PUT /api/employees/{id}", protect(cfg.Employees.Update))
		mux.Handle("DELETE /api/employees/{id}", protect(cfg.Employees.Delete))
	}

	if cfg.Lookups != nil {
		mux.Handle("GET /api/lookups/{kind}", protect(cfg.Lookups.List))
		mux.Handle("POST /api/lookups/{kind}", protect(cfg.Lookups.Create))
		mux.Handle("GET /api/lookups/{kind}/{id}", protect(cfg.Lookups.Get))
		mux.Handle("PUT /api/lookups/{kind}/{id}", protect(cfg.Lookups.Update))
		mux.Handle("DELETE /api/lookups/{kind}/{id}", protect(cfg.Lookups.Delete))
	}

	if cfg.Events != nil {
		mux.Handle("GET /api/events", protect(cfg.Events.List))
		mux.Handle("POST /api/events", protect(cfg.Events.Create))
		mux.Handle("GET /api/events/upcoming", protect(cfg.Events.Upcoming))
		mux.Handle("GET /api/events/{id}", protect(cfg.Events.Get))
		mux.Handle("PUT /api/events/{id}", protect(cfg.Events.Update))
		mux.Handle("DELETE /api/events/{id}", protect(cfg.Events.Delete))
		mux.Handle("POST /api/events/{id}/participants", protect(cfg.Events.AddParticipants))
		mux.Handle("DELETE /api/events/{id}/participants/{employeeId}", protect(cfg.Events.RemoveParticipant))
	}

	if cfg.Reports != nil {
		mux.Handle("POST /api/bookings/conflicts", protect(cfg.Reports.Conflicts))
		mux.Handle("POST /api/reports/activity", protect(cfg.Reports.Activity))
		mux.Handle("GET /api/profile", protect(cfg.Reports.Profile))
	}

	if cfg.Users != nil {
		mux.Handle("GET /api/users", protect(cfg.Users.List))
		mux.Handle("POST /api/users", protect(cfg.Users.Create))
		mux.Handle("GET /api/users/{id}", protect(cfg.Users.Get))
		mux.Handle("PUT /api/users/{id}", protect(cfg.Users.Update))
		mux.Handle("DELETE /api/users/{id}", protect(cfg.Users.Delete))
		mux.Handle("PUT /api/profile", protect(cfg.Users.UpdateProfile))
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
