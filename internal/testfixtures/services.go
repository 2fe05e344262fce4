package testfixtures

import (
	"io"
	"log/slog"
	"time"

	"github.com/example/event-booking/internal/application"
	"github.com/example/event-booking/internal/persistence/appstore"
	"github.com/example/event-booking/internal/scheduler"
)

// SessionSecret is the HMAC key used for session token hashes in tests.
var SessionSecret = []byte("test-session-secret-0123456789abcdef")

var fastParams = application.Argon2idParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// FastHash hashes password with cheap argon2id parameters. The result
// verifies with application.VerifyPassword.
func FastHash(password string) (string, error) {
	return application.CreatePasswordHash(password, fastParams)
}

// Services bundles every application service wired over one set of adapters.
type Services struct {
	Lookups   *application.LookupService
	Rooms     *application.RoomService
	Employees *application.EmployeeService
	Scheduler *application.BookingScheduler
	Events    *application.EventService
	Queries   *application.QueryService
	Users     *application.UserService
	Auth      *application.AuthService
	Resets    *application.ResetTokenStore
	Mailbox   *Mailbox
}

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Locker      scheduler.Locker
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Locker == nil {
		factory.Locker = scheduler.NewKeyedMutex()
	}
	if factory.Logger == nil {
		factory.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLocker overrides the resource locker shared by the booking scheduler.
func WithLocker(locker scheduler.Locker) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Locker = locker
	}
}

// Build wires every service over adapters.
func (f *ServiceFactory) Build(adapters appstore.Adapters) Services {
	now := f.Clock.NowFunc()
	ids := f.IDGenerator.NextFunc()
	mailbox := &Mailbox{}
	resets := application.NewResetTokenStore(15*time.Minute, 0, now)

	lookups := application.NewLookupService(adapters.Lookups, ids, now, f.Logger)
	sched := application.NewBookingScheduler(adapters.Catalog, adapters.Events, adapters.Bookings, f.Locker, now, f.Logger)

	return Services{
		Lookups:   lookups,
		Rooms:     application.NewRoomServiceWithLogger(adapters.Rooms, adapters.Lookups, adapters.Events, ids, now, f.Logger).WithRetirer(sched),
		Employees: application.NewEmployeeService(adapters.Employees, adapters.Lookups, lookups, ids, now, f.Logger).WithRetirer(sched),
		Scheduler: sched,
		Events: application.NewEventService(application.EventServiceDeps{
			Events:      adapters.Events,
			Bookings:    adapters.Bookings,
			Lookups:     adapters.Lookups,
			Users:       adapters.Users,
			Scheduler:   sched,
			IDGenerator: ids,
			Now:         now,
			Logger:      f.Logger,
		}),
		Queries: application.NewQueryService(adapters.Events, now, time.UTC, f.Logger),
		Users:   application.NewUserServiceWithLogger(adapters.Users, FastHash, ids, now, f.Logger),
		Auth: application.NewAuthService(application.AuthServiceDeps{
			Credentials:   adapters.Users,
			Sessions:      adapters.Sessions,
			ResetTokens:   resets,
			Hash:          FastHash,
			Notify:        mailbox.Deliver,
			IDGenerator:   ids,
			Now:           now,
			SessionSecret: SessionSecret,
			Logger:        f.Logger,
		}),
		Resets:  resets,
		Mailbox: mailbox,
	}
}
