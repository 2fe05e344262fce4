package appstore

import (
	"context"

	"github.com/example/event-booking/internal/application"
	"github.com/example/event-booking/internal/persistence"
	"github.com/example/event-booking/internal/scheduler"
)

// RoomRepository adapts persistence rooms to the room service.
type RoomRepository struct {
	repo persistence.RoomRepository
}

// NewRoomRepository wraps repo.
func NewRoomRepository(repo persistence.RoomRepository) *RoomRepository {
	return &RoomRepository{repo: repo}
}

func (a *RoomRepository) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *RoomRepository) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *RoomRepository) UpdateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.UpdateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	return a.repo.DeleteRoom(ctx, id)
}

func (a *RoomRepository) ListRooms(ctx context.Context) ([]application.Room, error) {
	models, err := a.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, toApplicationRoom(model))
	}
	return rooms, nil
}

// EmployeeRepository adapts persistence employees to the employee service.
type EmployeeRepository struct {
	repo persistence.EmployeeRepository
}

// NewEmployeeRepository wraps repo.
func NewEmployeeRepository(repo persistence.EmployeeRepository) *EmployeeRepository {
	return &EmployeeRepository{repo: repo}
}

func (a *EmployeeRepository) CreateEmployee(ctx context.Context, employee application.Employee) (application.Employee, error) {
	if err := a.repo.CreateEmployee(ctx, toPersistenceEmployee(employee)); err != nil {
		return application.Employee{}, err
	}
	return a.GetEmployee(ctx, employee.ID)
}

func (a *EmployeeRepository) GetEmployee(ctx context.Context, id string) (application.Employee, error) {
	stored, err := a.repo.GetEmployee(ctx, id)
	if err != nil {
		return application.Employee{}, err
	}
	return toApplicationEmployee(stored), nil
}

func (a *EmployeeRepository) UpdateEmployee(ctx context.Context, employee application.Employee) (application.Employee, error) {
	if err := a.repo.UpdateEmployee(ctx, toPersistenceEmployee(employee)); err != nil {
		return application.Employee{}, err
	}
	return a.GetEmployee(ctx, employee.ID)
}

func (a *EmployeeRepository) DeleteEmployee(ctx context.Context, id string) error {
	return a.repo.DeleteEmployee(ctx, id)
}

func (a *EmployeeRepository) ListEmployees(ctx context.Context) ([]application.Employee, error) {
	models, err := a.repo.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	employees := make([]application.Employee, 0, len(models))
	for _, model := range models {
		employees = append(employees, toApplicationEmployee(model))
	}
	return employees, nil
}

// Catalog answers resource existence checks for the booking scheduler.
type Catalog struct {
	rooms     persistence.RoomRepository
	employees persistence.EmployeeRepository
}

var _ scheduler.Catalog = (*Catalog)(nil)

// NewCatalog builds a catalog over the room and employee repositories.
func NewCatalog(rooms persistence.RoomRepository, employees persistence.EmployeeRepository) *Catalog {
	return &Catalog{rooms: rooms, employees: employees}
}

func (c *Catalog) RoomExists(ctx context.Context, id string) (bool, error) {
	return c.rooms.RoomExists(ctx, id)
}

func (c *Catalog) EmployeeExists(ctx context.Context, id string) (bool, error) {
	return c.employees.EmployeeExists(ctx, id)
}

// LookupRepository adapts the reference tables.
type LookupRepository struct {
	repo persistence.LookupRepository
}

// NewLookupRepository wraps repo.
func NewLookupRepository(repo persistence.LookupRepository) *LookupRepository {
	return &LookupRepository{repo: repo}
}

func (a *LookupRepository) GetLookup(ctx context.Context, kind application.LookupKind, id string) (application.Lookup, error) {
	stored, err := a.repo.GetLookup(ctx, string(kind), id)
	if err != nil {
		return application.Lookup{}, err
	}
	return toApplicationLookup(stored), nil
}

func (a *LookupRepository) CreateLookup(ctx context.Context, lookup application.Lookup) (application.Lookup, error) {
	if err := a.repo.CreateLookup(ctx, toPersistenceLookup(lookup)); err != nil {
		return application.Lookup{}, err
	}
	return a.GetLookup(ctx, lookup.Kind, lookup.ID)
}

func (a *LookupRepository) UpdateLookup(ctx context.Context, lookup application.Lookup) (application.Lookup, error) {
	if err := a.repo.UpdateLookup(ctx, toPersistenceLookup(lookup)); err != nil {
		return application.Lookup{}, err
	}
	return a.GetLookup(ctx, lookup.Kind, lookup.ID)
}

func (a *LookupRepository) FindLookupByName(ctx context.Context, kind application.LookupKind, name string) (application.Lookup, error) {
	stored, err := a.repo.FindLookupByName(ctx, string(kind), name)
	if err != nil {
		return application.Lookup{}, err
	}
	return toApplicationLookup(stored), nil
}

func (a *LookupRepository) ListLookups(ctx context.Context, kind application.LookupKind) ([]application.Lookup, error) {
	models, err := a.repo.ListLookups(ctx, string(kind))
	if err != nil {
		return nil, err
	}
	lookups := make([]application.Lookup, 0, len(models))
	for _, model := range models {
		lookups = append(lookups, toApplicationLookup(model))
	}
	return lookups, nil
}

func (a *LookupRepository) DeleteLookup(ctx context.Context, kind application.LookupKind, id string) error {
	return a.repo.DeleteLookup(ctx, string(kind), id)
}

func toApplicationRoom(model persistence.Room) application.Room {
	return application.Room{
		ID:          model.ID,
		Name:        model.Name,
		RoomTypeID:  model.RoomTypeID,
		Capacity:    model.Capacity,
		Address:     model.Address,
		Description: cloneString(model.Description),
		IsExternal:  model.IsExternal,
		ExternalURL: cloneString(model.ExternalURL),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:          room.ID,
		Name:        room.Name,
		RoomTypeID:  room.RoomTypeID,
		Capacity:    room.Capacity,
		Address:     room.Address,
		Description: cloneString(room.Description),
		IsExternal:  room.IsExternal,
		ExternalURL: cloneString(room.ExternalURL),
		CreatedAt:   room.CreatedAt,
		UpdatedAt:   room.UpdatedAt,
	}
}

func toApplicationEmployee(model persistence.Employee) application.Employee {
	return application.Employee{
		ID:          model.ID,
		FullName:    model.FullName,
		PositionID:  model.PositionID,
		ContactInfo: cloneString(model.ContactInfo),
		IsExternal:  model.IsExternal,
		ExternalURL: cloneString(model.ExternalURL),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceEmployee(employee application.Employee) persistence.Employee {
	return persistence.Employee{
		ID:          employee.ID,
		FullName:    employee.FullName,
		PositionID:  employee.PositionID,
		ContactInfo: cloneString(employee.ContactInfo),
		IsExternal:  employee.IsExternal,
		ExternalURL: cloneString(employee.ExternalURL),
		CreatedAt:   employee.CreatedAt,
		UpdatedAt:   employee.UpdatedAt,
	}
}

func toApplicationLookup(model persistence.Lookup) application.Lookup {
	return application.Lookup{
		ID:        model.ID,
		Kind:      application.LookupKind(model.Kind),
		Name:      model.Name,
		Category:  model.Category,
		MinAge:    model.MinAge,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceLookup(lookup application.Lookup) persistence.Lookup {
	return persistence.Lookup{
		ID:        lookup.ID,
		Kind:      string(lookup.Kind),
		Name:      lookup.Name,
		Category:  lookup.Category,
		MinAge:    lookup.MinAge,
		CreatedAt: lookup.CreatedAt,
		UpdatedAt: lookup.UpdatedAt,
	}
}
