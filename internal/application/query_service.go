package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/event-booking/internal/query"
	"github.com/example/event-booking/internal/scheduler"
)

const (
	// DefaultUpcomingLimit is the number of upcoming events returned when the
	// caller does not ask for a specific count.
	DefaultUpcomingLimit = 3
	// ProfileRecentEvents is the number of recent events on an organizer profile.
	ProfileRecentEvents = 5
)

// QueryService answers read-only questions about events. Every query is
// built from query predicates; storage backends decide how to evaluate them.
type QueryService struct {
	events   EventQuerier
	now      func() time.Time
	location *time.Location
	logger   *slog.Logger
}

// NewQueryService constructs a query service. Calendar dates in filters are
// interpreted in location, UTC when nil.
func NewQueryService(events EventQuerier, now func() time.Time, location *time.Location, logger *slog.Logger) *QueryService {
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.UTC
	}
	return &QueryService{events: events, now: now, location: location, logger: defaultLogger(logger)}
}

func (s *QueryService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "QueryService", operation, attrs...)
}

// UpcomingEvents returns the next events starting after now, earliest first.
func (s *QueryService) UpcomingEvents(ctx context.Context, limit int) ([]EventSummary, error) {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	return s.run(ctx, "UpcomingEvents", query.Spec{
		Where: query.StartsAfter{At: s.now()},
		Order: query.StartAscending,
		Limit: limit,
	})
}

// FilterEvents lists events whose span covers the given calendar date,
// optionally narrowed by event type and status, ordered by start.
func (s *QueryService) FilterEvents(ctx context.Context, params FilterEventsParams) ([]EventSummary, error) {
	var where []query.Predicate
	if params.Date != nil {
		where = append(where, query.OnDate{Date: *params.Date, Location: s.location})
	}
	if id := strings.TrimSpace(params.EventTypeID); id != "" {
		where = append(where, query.TypeIs{ID: id})
	}
	if id := strings.TrimSpace(params.StatusID); id != "" {
		where = append(where, query.StatusIs{ID: id})
	}
	return s.run(ctx, "FilterEvents", query.Spec{Where: query.All(where...), Order: query.StartAscending})
}

// ActivityReport lists the events that lie entirely inside [From, To].
// Optional filters combine conjunctively.
func (s *QueryService) ActivityReport(ctx context.Context, params ActivityReportParams) ([]EventSummary, error) {
	if !params.Principal.CanOrganize() {
		return nil, ErrUnauthorized
	}
	if params.From.IsZero() || params.To.IsZero() || params.To.Before(params.From) {
		return nil, ErrInvalidTimeRange
	}

	where := []query.Predicate{query.WithinRange{From: params.From, To: params.To}}
	if id := strings.TrimSpace(params.EventID); id != "" {
		where = append(where, query.EventIs{ID: id})
	}
	if id := strings.TrimSpace(params.RoomID); id != "" {
		where = append(where, query.UsesResource{Resource: scheduler.KeyOf(scheduler.Room(id))})
	}
	if id := strings.TrimSpace(params.EmployeeID); id != "" {
		where = append(where, query.UsesResource{Resource: scheduler.KeyOf(scheduler.Employee(id))})
	}
	if params.MinParticipants != nil {
		where = append(where, query.MinParticipants{N: *params.MinParticipants})
	}
	if id := strings.TrimSpace(params.AgeCategoryID); id != "" {
		where = append(where, query.AgeCategoryIs{ID: id})
	}
	if id := strings.TrimSpace(params.StatusID); id != "" {
		where = append(where, query.StatusIs{ID: id})
	}

	return s.run(ctx, "ActivityReport", query.Spec{Where: query.All(where...), Order: query.StartAscending})
}

// OrganizerProfile counts the events organized by userID and returns the
// most recent ones, latest first. An empty userID means the principal.
func (s *QueryService) OrganizerProfile(ctx context.Context, principal Principal, userID string) (profile OrganizerProfile, err error) {
	if s == nil || s.events == nil {
		err = fmt.Errorf("event query repository not configured")
		return
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = principal.UserID
	}
	if userID != principal.UserID && !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	logger := s.loggerWith(ctx, "OrganizerProfile", "principal_id", principal.UserID, "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build organizer profile", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("organized_count", profile.OrganizedCount).InfoContext(ctx, "organizer profile built")
	}()

	organized := query.OrganizedBy{UserID: userID}
	profile.UserID = userID
	profile.OrganizedCount, err = s.events.CountEvents(ctx, organized)
	if err != nil {
		err = translateStorageError(err)
		return
	}
	profile.RecentEvents, err = s.events.QueryEvents(ctx, query.Spec{
		Where: organized,
		Order: query.StartDescending,
		Limit: ProfileRecentEvents,
	})
	if err != nil {
		err = translateStorageError(err)
	}
	return
}

func (s *QueryService) run(ctx context.Context, operation string, spec query.Spec) (events []EventSummary, err error) {
	if s == nil || s.events == nil {
		err = fmt.Errorf("event query repository not configured")
		return
	}

	logger := s.loggerWith(ctx, operation)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "event query failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(events)).DebugContext(ctx, "event query completed")
	}()

	events, err = s.events.QueryEvents(ctx, spec)
	if err != nil {
		err = translateStorageError(err)
	}
	return
}
