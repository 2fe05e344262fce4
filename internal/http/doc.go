// Package http exposes the booking services as a JSON API.
//
// The router serves the following endpoints. Everything except login and the
// password reset pair requires a session token, sent either as
// "Authorization: Bearer <token>" or in the session_token cookie.
//   - POST /api/auth/login, POST /api/auth/logout: issue and revoke sessions.
//   - POST /api/auth/password-reset, POST /api/auth/password-reset/confirm:
//     request a reset token and exchange it for a new password.
//   - /api/rooms, /api/employees, /api/lookups/{kind}: catalog CRUD.
//     GET /api/rooms/{id} returns the room with its booked events and
//     GET /api/rooms/{id}/calendar.ics renders them as iCalendar.
//   - /api/events: event CRUD with the date, type and status filters on GET.
//     POST /api/events/{id}/participants and
//     DELETE /api/events/{id}/participants/{employeeId} manage employees.
//   - GET /api/events/upcoming, POST /api/bookings/conflicts,
//     POST /api/reports/activity, GET /api/profile: read-only queries.
//   - /api/users: administrator user management.
//
// Request and response DTOs live alongside their handlers.
package http
