package scheduler

import (
	"context"
	"fmt"
	"strings"
)

// ResourceKind tags the variant of a bookable resource.
type ResourceKind string

const (
	// KindRoom identifies rooms and venues.
	KindRoom ResourceKind = "room"
	// KindEmployee identifies employees and contractors.
	KindEmployee ResourceKind = "employee"
)

// ParseResourceKind converts a stored or transported tag into a ResourceKind.
func ParseResourceKind(value string) (ResourceKind, error) {
	switch ResourceKind(strings.ToLower(strings.TrimSpace(value))) {
	case KindRoom:
		return KindRoom, nil
	case KindEmployee:
		return KindEmployee, nil
	}
	return "", fmt.Errorf("scheduler: unknown resource kind %q", value)
}

// Catalog answers existence questions for bookable resources.
type Catalog interface {
	RoomExists(ctx context.Context, id string) (bool, error)
	EmployeeExists(ctx context.Context, id string) (bool, error)
}

// Resource is a bookable entity. Room and Employee are the only implementations.
type Resource interface {
	ID() string
	Kind() ResourceKind
	Exists(ctx context.Context, catalog Catalog) (bool, error)
	sealed()
}

// Room is a bookable room reference.
type Room string

// ID returns the room identifier.
func (r Room) ID() string { return string(r) }

// Kind returns KindRoom.
func (Room) Kind() ResourceKind { return KindRoom }

// Exists asks the catalog whether the room is registered.
func (r Room) Exists(ctx context.Context, catalog Catalog) (bool, error) {
	if catalog == nil {
		return false, fmt.Errorf("scheduler: catalog not configured")
	}
	return catalog.RoomExists(ctx, string(r))
}

func (Room) sealed() {}

// Employee is a bookable employee or contractor reference.
type Employee string

// ID returns the employee identifier.
func (e Employee) ID() string { return string(e) }

// Kind returns KindEmployee.
func (Employee) Kind() ResourceKind { return KindEmployee }

// Exists asks the catalog whether the employee is registered.
func (e Employee) Exists(ctx context.Context, catalog Catalog) (bool, error) {
	if catalog == nil {
		return false, fmt.Errorf("scheduler: catalog not configured")
	}
	return catalog.EmployeeExists(ctx, string(e))
}

func (Employee) sealed() {}

// NewResource builds the variant matching kind.
func NewResource(kind ResourceKind, id string) (Resource, error) {
	switch kind {
	case KindRoom:
		return Room(id), nil
	case KindEmployee:
		return Employee(id), nil
	}
	return nil, fmt.Errorf("scheduler: unknown resource kind %q", kind)
}

// Key identifies the lock and conflict scope of a resource.
type Key struct {
	Kind ResourceKind
	ID   string
}

// KeyOf returns the key of a resource.
func KeyOf(r Resource) Key {
	return Key{Kind: r.Kind(), ID: r.ID()}
}

// String renders the key as kind:id.
func (k Key) String() string {
	return string(k.Kind) + ":" + k.ID
}

// Resource converts the key back into its variant.
func (k Key) Resource() (Resource, error) {
	return NewResource(k.Kind, k.ID)
}

func (k Key) less(other Key) bool {
	if k.Kind != other.Kind {
		return k.Kind < other.Kind
	}
	return k.ID < other.ID
}
