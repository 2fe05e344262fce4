package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/event-booking/internal/scheduler"
)

// EmployeeRepository captures the persistence operations needed by the service.
type EmployeeRepository interface {
	CreateEmployee(ctx context.Context, employee Employee) (Employee, error)
	GetEmployee(ctx context.Context, id string) (Employee, error)
	UpdateEmployee(ctx context.Context, employee Employee) (Employee, error)
	DeleteEmployee(ctx context.Context, id string) error
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// PositionResolver finds or creates a position by name.
type PositionResolver interface {
	EnsurePosition(ctx context.Context, name string) (Lookup, error)
}

// EmployeeService manages bookable employees and contractors.
type EmployeeService struct {
	employees   EmployeeRepository
	lookups     LookupReader
	positions   PositionResolver
	retirer     ResourceRetirer
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEmployeeService constructs an employee service.
func NewEmployeeService(employees EmployeeRepository, lookups LookupReader, positions PositionResolver, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EmployeeService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &EmployeeService{
		employees:   employees,
		lookups:     lookups,
		positions:   positions,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// WithRetirer makes DeleteEmployee hold the employee's booking lock while deleting.
func (s *EmployeeService) WithRetirer(r ResourceRetirer) *EmployeeService {
	s.retirer = r
	return s
}

func (s *EmployeeService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EmployeeService", operation, attrs...)
}

// CreateEmployee validates input and stores a new employee.
func (s *EmployeeService) CreateEmployee(ctx context.Context, params CreateEmployeeParams) (employee Employee, err error) {
	if s == nil {
		err = fmt.Errorf("EmployeeService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateEmployee", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create employee", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("employee_id", employee.ID).InfoContext(ctx, "employee created")
	}()

	if !params.Principal.CanOrganize() {
		err = ErrUnauthorized
		return
	}

	var input EmployeeInput
	input, err = s.prepareInput(ctx, params.Input)
	if err != nil {
		return
	}

	employee = Employee{
		ID:          s.idGenerator(),
		FullName:    input.FullName,
		PositionID:  input.PositionID,
		ContactInfo: input.ContactInfo,
		IsExternal:  input.IsExternal,
		ExternalURL: input.ExternalURL,
		CreatedAt:   s.now(),
	}
	employee.UpdatedAt = employee.CreatedAt

	if s.employees == nil {
		return
	}

	employee, err = s.employees.CreateEmployee(ctx, employee)
	if err != nil {
		err = mapEmployeeRepoError(err, employee.ID)
	}
	return
}

// UpdateEmployee validates input and updates an existing employee.
func (s *EmployeeService) UpdateEmployee(ctx context.Context, params UpdateEmployeeParams) (employee Employee, err error) {
	if s == nil {
		err = fmt.Errorf("EmployeeService is nil")
		return
	}
	if !params.Principal.CanOrganize() {
		err = ErrUnauthorized
		return
	}
	if s.employees == nil {
		err = fmt.Errorf("employee repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateEmployee", "principal_id", params.Principal.UserID, "employee_id", params.EmployeeID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update employee", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "employee updated")
	}()

	var existing Employee
	existing, err = s.employees.GetEmployee(ctx, params.EmployeeID)
	if err != nil {
		err = mapEmployeeRepoError(err, params.EmployeeID)
		return
	}

	var input EmployeeInput
	input, err = s.prepareInput(ctx, params.Input)
	if err != nil {
		return
	}

	existing.FullName = input.FullName
	existing.PositionID = input.PositionID
	existing.ContactInfo = input.ContactInfo
	existing.IsExternal = input.IsExternal
	existing.ExternalURL = input.ExternalURL
	existing.UpdatedAt = s.now()

	employee, err = s.employees.UpdateEmployee(ctx, existing)
	if err != nil {
		err = mapEmployeeRepoError(err, params.EmployeeID)
	}
	return
}

// DeleteEmployee removes an employee that holds no bookings.
func (s *EmployeeService) DeleteEmployee(ctx context.Context, principal Principal, employeeID string) error {
	if s == nil {
		return fmt.Errorf("EmployeeService is nil")
	}
	if !principal.CanOrganize() {
		return ErrUnauthorized
	}
	if s.employees == nil {
		return fmt.Errorf("employee repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteEmployee", "principal_id", principal.UserID, "employee_id", employeeID)
	err := retire(ctx, s.retirer, scheduler.Employee(employeeID), func(ctx context.Context) error {
		return s.employees.DeleteEmployee(ctx, employeeID)
	})
	if err != nil {
		err = mapEmployeeRepoError(err, employeeID)
		logger.ErrorContext(ctx, "failed to delete employee", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "employee deleted")
	return nil
}

// GetEmployee returns a single employee.
func (s *EmployeeService) GetEmployee(ctx context.Context, principal Principal, employeeID string) (Employee, error) {
	if s == nil {
		return Employee{}, fmt.Errorf("EmployeeService is nil")
	}
	if s.employees == nil {
		return Employee{}, fmt.Errorf("employee repository not configured")
	}
	employee, err := s.employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return Employee{}, mapEmployeeRepoError(err, employeeID)
	}
	return employee, nil
}

// ListEmployees returns every employee ordered by full name.
func (s *EmployeeService) ListEmployees(ctx context.Context, principal Principal) ([]Employee, error) {
	if s == nil {
		return nil, fmt.Errorf("EmployeeService is nil")
	}
	if s.employees == nil {
		return nil, nil
	}
	raw, err := s.employees.ListEmployees(ctx)
	if err != nil {
		return nil, translateStorageError(err)
	}
	out := make([]Employee, len(raw))
	copy(out, raw)
	sort.Slice(out, func(i, j int) bool {
		return byDisplayName(out[i].FullName, out[i].ID, out[j].FullName, out[j].ID)
	})
	return out, nil
}

// prepareInput normalises and validates input. A NewPosition name is
// resolved to a position ID, creating the position when needed.
func (s *EmployeeService) prepareInput(ctx context.Context, input EmployeeInput) (EmployeeInput, error) {
	input.FullName = strings.TrimSpace(input.FullName)
	input.PositionID = strings.TrimSpace(input.PositionID)
	input.NewPosition = strings.TrimSpace(input.NewPosition)
	input.ContactInfo = normalizeOptionalString(input.ContactInfo)
	input.ExternalURL = normalizeOptionalString(input.ExternalURL)

	vErr := &ValidationError{}
	if input.FullName == "" {
		vErr.add("full_name", "full name is required")
	}
	if input.PositionID == "" && input.NewPosition == "" {
		vErr.add("position_id", "position is required")
	}
	validateExternalURL(vErr, input.ExternalURL)
	if vErr.HasErrors() {
		return input, vErr
	}

	if input.NewPosition != "" && s.positions != nil {
		position, err := s.positions.EnsurePosition(ctx, input.NewPosition)
		if err != nil {
			return input, err
		}
		input.PositionID = position.ID
		return input, nil
	}

	if err := ensureLookup(ctx, s.lookups, LookupPosition, input.PositionID); err != nil {
		return input, err
	}
	return input, nil
}

func mapEmployeeRepoError(err error, employeeID string) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return notFound("employee", employeeID)
	}
	return translateStorageError(err)
}
