package sqlstore

import (
	"context"
	"database/sql"

	"github.com/example/event-booking/internal/persistence"
	"github.com/example/event-booking/internal/scheduler"
)

// EmployeeRepository implements persistence.EmployeeRepository
type EmployeeRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(pool *ConnectionPool) *EmployeeRepository {
	return &EmployeeRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const employeeColumns = `id, full_name, position_id, contact_info, is_external, external_url, created_at, updated_at`

// CreateEmployee inserts a new employee
func (r *EmployeeRepository) CreateEmployee(ctx context.Context, employee persistence.Employee) error {
	if employee.ID == "" {
		return persistence.ErrConstraintViolation
	}

	employee.CreatedAt = nowIfZero(employee.CreatedAt)
	employee.UpdatedAt = nowIfZero(employee.UpdatedAt)

	_, err := r.helper.Exec(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		employee.ID,
		employee.FullName,
		employee.PositionID,
		employee.ContactInfo,
		employee.IsExternal,
		employee.ExternalURL,
		r.helper.Time(employee.CreatedAt),
		r.helper.Time(employee.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateEmployee updates an existing employee
func (r *EmployeeRepository) UpdateEmployee(ctx context.Context, employee persistence.Employee) error {
	if employee.ID == "" {
		return persistence.ErrConstraintViolation
	}

	employee.UpdatedAt = nowIfZero(employee.UpdatedAt)

	result, err := r.helper.Exec(ctx, `
		UPDATE employees
		SET full_name = ?, position_id = ?, contact_info = ?, is_external = ?, external_url = ?, updated_at = ?
		WHERE id = ?
	`,
		employee.FullName,
		employee.PositionID,
		employee.ContactInfo,
		employee.IsExternal,
		employee.ExternalURL,
		r.helper.Time(employee.UpdatedAt),
		employee.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetEmployee retrieves an employee by ID
func (r *EmployeeRepository) GetEmployee(ctx context.Context, id string) (persistence.Employee, error) {
	if id == "" {
		return persistence.Employee{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	employee, err := scanEmployee(row)
	if err != nil {
		return persistence.Employee{}, r.mapper.MapError(err)
	}
	return employee, nil
}

// ListEmployees returns all employees ordered by full name then ID
func (r *EmployeeRepository) ListEmployees(ctx context.Context) ([]persistence.Employee, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY lower(full_name) ASC, id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var employees []persistence.Employee
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		employees = append(employees, employee)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return employees, nil
}

// EmployeeExists reports whether an employee with the ID is stored.
func (r *EmployeeRepository) EmployeeExists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, r.helper, r.mapper, `SELECT 1 FROM employees WHERE id = ?`, id)
}

// DeleteEmployee removes an employee that holds no bookings.
func (r *EmployeeRepository) DeleteEmployee(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return deleteResource(ctx, tx, r.helper, r.mapper, scheduler.KindEmployee, "employees", id)
	})
}

func scanEmployee(row rowScanner) (persistence.Employee, error) {
	var (
		employee         persistence.Employee
		contact, extURL  sql.NullString
		created, updated timeColumn
	)
	if err := row.Scan(
		&employee.ID,
		&employee.FullName,
		&employee.PositionID,
		&contact,
		&employee.IsExternal,
		&extURL,
		&created,
		&updated,
	); err != nil {
		return persistence.Employee{}, err
	}
	employee.ContactInfo = stringPtr(contact)
	employee.ExternalURL = stringPtr(extURL)
	employee.CreatedAt = created.Time
	employee.UpdatedAt = updated.Time
	return employee, nil
}
