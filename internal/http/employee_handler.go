package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/event-booking/internal/application"
)

type employeeService interface {
	CreateEmployee(ctx context.Context, params application.CreateEmployeeParams) (application.Employee, error)
	UpdateEmployee(ctx context.Context, params application.UpdateEmployeeParams) (application.Employee, error)
	DeleteEmployee(ctx context.Context, principal application.Principal, employeeID string) error
	GetEmployee(ctx context.Context, principal application.Principal, employeeID string) (application.Employee, error)
	ListEmployees(ctx context.Context, principal application.Principal) ([]application.Employee, error)
}

type EmployeeHandler struct {
	service   employeeService
	responder responder
	logger    *slog.Logger
}

func NewEmployeeHandler(service employeeService, logger *slog.Logger) *EmployeeHandler {
	base := defaultLogger(logger)
	return &EmployeeHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *EmployeeHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EmployeeHandler", operation, attrs...)
}

func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	employees, err := h.service.ListEmployees(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "employee listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := employeesResponse{Employees: make([]employeeDTO, 0, len(employees))}
	for _, employee := range employees {
		resp.Employees = append(resp.Employees, toEmployeeDTO(employee))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req employeeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode employee request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)
	employee, err := h.service.CreateEmployee(r.Context(), application.CreateEmployeeParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "employee creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("employee_id", employee.ID).InfoContext(r.Context(), "employee created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, employeeResponse{Employee: toEmployeeDTO(employee)})
}

func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	employeeID := strings.TrimSpace(r.PathValue("id"))

	employee, err := h.service.GetEmployee(r.Context(), principal, employeeID)
	if err != nil {
		h.log(r.Context(), "Get", "employee_id", employeeID).ErrorContext(r.Context(), "employee lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, employeeResponse{Employee: toEmployeeDTO(employee)})
}

func (h *EmployeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	employeeID := strings.TrimSpace(r.PathValue("id"))

	var req employeeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Update", "employee_id", employeeID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode employee request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "employee_id", employeeID)
	employee, err := h.service.UpdateEmployee(r.Context(), application.UpdateEmployeeParams{
		Principal:  principal,
		EmployeeID: employeeID,
		Input:      req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "employee update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "employee updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, employeeResponse{Employee: toEmployeeDTO(employee)})
}

func (h *EmployeeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	employeeID := strings.TrimSpace(r.PathValue("id"))
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "employee_id", employeeID)

	if err := h.service.DeleteEmployee(r.Context(), principal, employeeID); err != nil {
		logger.ErrorContext(r.Context(), "employee deletion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "employee deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type employeeRequest struct {
	FullName    string  `json:"full_name"`
	PositionID  string  `json:"position_id"`
	NewPosition string  `json:"new_position"`
	ContactInfo *string `json:"contact_info"`
	IsExternal  bool    `json:"is_external"`
	ExternalURL *string `json:"external_url"`
}

func (r employeeRequest) toInput() application.EmployeeInput {
	return application.EmployeeInput{
		FullName:    strings.TrimSpace(r.FullName),
		PositionID:  strings.TrimSpace(r.PositionID),
		NewPosition: strings.TrimSpace(r.NewPosition),
		ContactInfo: trimmedPtr(r.ContactInfo),
		IsExternal:  r.IsExternal,
		ExternalURL: trimmedPtr(r.ExternalURL),
	}
}

type employeeDTO struct {
	ID          string  `json:"id"`
	FullName    string  `json:"full_name"`
	PositionID  string  `json:"position_id"`
	ContactInfo *string `json:"contact_info,omitempty"`
	IsExternal  bool    `json:"is_external"`
	ExternalURL *string `json:"external_url,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type employeeResponse struct {
	Employee employeeDTO `json:"employee"`
}

type employeesResponse struct {
	Employees []employeeDTO `json:"employees"`
}

func toEmployeeDTO(employee application.Employee) employeeDTO {
	return employeeDTO{
		ID:          employee.ID,
		FullName:    employee.FullName,
		PositionID:  employee.PositionID,
		ContactInfo: employee.ContactInfo,
		IsExternal:  employee.IsExternal,
		ExternalURL: employee.ExternalURL,
		CreatedAt:   formatTime(employee.CreatedAt),
		UpdatedAt:   formatTime(employee.UpdatedAt),
	}
}
