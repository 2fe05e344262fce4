package testfixtures

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/event-booking/internal/application"
)

func TestServiceFactoryBuild_EndToEnd(t *testing.T) {
	ctx := context.Background()
	h := NewSQLiteHarness(t)
	factory := NewServiceFactory()
	svc := factory.Build(h.Adapters)

	organizer := h.AddUser(NewUserFixture(WithUserRoles(application.RoleOrganizer)))
	room := h.AddRoom(NewRoomFixture())
	host := h.AddEmployee(NewEmployeeFixture())

	result, err := svc.Auth.Authenticate(ctx, application.AuthenticateParams{Email: organizer.Email, Password: organizer.Password})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	principal, err := svc.Auth.ResolveSession(ctx, result.Session.Token)
	if err != nil {
		t.Fatalf("ResolveSession: %v", err)
	}
	if principal.UserID != organizer.ID || !principal.CanOrganize() {
		t.Fatalf("unexpected principal %+v", principal)
	}

	event, err := svc.Events.CreateEvent(ctx, application.CreateEventParams{
		Principal: principal,
		Input:     NewEventFixture(room.ID, WithEventEmployees(host.ID)).Input(),
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if !strings.HasPrefix(event.ID, "id-") || !event.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected deterministic id and timestamp, got %+v", event)
	}

	clash := NewEventFixture(room.ID, WithEventWindow(event.Start.Add(time.Hour), event.End.Add(time.Hour)))
	_, err = svc.Events.CreateEvent(ctx, application.CreateEventParams{Principal: principal, Input: clash.Input()})
	if !errors.Is(err, application.ErrResourceConflict) {
		t.Fatalf("expected ErrResourceConflict, got %v", err)
	}
}

func TestServiceFactoryBuild_PasswordReset(t *testing.T) {
	ctx := context.Background()
	h := NewSQLiteHarness(t)
	factory := NewServiceFactory()
	svc := factory.Build(h.Adapters)

	user := h.AddUser(NewUserFixture())

	if err := svc.Auth.RequestPasswordReset(ctx, user.Email); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	msg, ok := svc.Mailbox.Last()
	if !ok || msg.UserID != user.ID {
		t.Fatalf("expected reset message for %s, got %+v", user.ID, msg)
	}

	if err := svc.Auth.ConfirmPasswordReset(ctx, msg.Token, "new-password-1"); err != nil {
		t.Fatalf("ConfirmPasswordReset: %v", err)
	}
	if _, err := svc.Auth.Authenticate(ctx, application.AuthenticateParams{Email: user.Email, Password: user.Password}); !errors.Is(err, application.ErrInvalidCredentials) {
		t.Fatalf("old password should fail, got %v", err)
	}
	if _, err := svc.Auth.Authenticate(ctx, application.AuthenticateParams{Email: user.Email, Password: "new-password-1"}); err != nil {
		t.Fatalf("new password: %v", err)
	}
}
