// Package httpapi exposes the application services over REST.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	app "github.com/chainwage/payroll_layer/internal/app"
	"github.com/chainwage/payroll_layer/internal/app/domain/user"
	"github.com/chainwage/payroll_layer/internal/app/services/roles"
	"github.com/chainwage/payroll_layer/internal/app/storage"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the core REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	mux := http.NewServeMux()
	mux.HandleFunc("/connect", h.connect)
	mux.HandleFunc("/networks", h.networks)
	mux.HandleFunc("/roles", h.assignRole)
	mux.HandleFunc("/roles/", h.resolveRole)
	mux.HandleFunc("/employers/", h.employerResources)
	return mux
}

func (h *handler) connect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	result, err := h.app.Connect.Connect(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) networks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.app.Validator.Allowed())
}

func (h *handler) assignRole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Address  string `json:"address"`
		Role     string `json:"role"`
		Employer string `json:"employer"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resolution, err := h.app.Roles.Assign(r.Context(), payload.Address, user.Role(payload.Role), payload.Employer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, resolution)
}

func (h *handler) resolveRole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	addr := strings.Trim(strings.TrimPrefix(r.URL.Path, "/roles"), "/")
	if addr == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	resolution, err := h.app.Roles.Resolve(r.Context(), addr)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, roles.ErrRoleNotAssigned) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, resolution)
}

func (h *handler) employerResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/employers"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	employer := parts[0]
	if len(parts) == 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[1] {
	case "employees":
		h.employerEmployees(w, r, employer, parts[2:])
	case "payouts":
		h.employerPayouts(w, r, employer)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) employerEmployees(w http.ResponseWriter, r *http.Request, employer string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodPost:
			var payload struct {
				Address  string `json:"address"`
				Name     string `json:"name"`
				Salary   int64  `json:"salary"`
				Decimals int    `json:"decimals"`
				Schedule string `json:"schedule"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}

			emp, err := h.app.Roster.AddEmployee(r.Context(), employer, payload.Address, payload.Name, payload.Salary, payload.Decimals, payload.Schedule)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			writeJSON(w, http.StatusCreated, emp)

		case http.MethodGet:
			emps, err := h.app.Roster.ListEmployees(r.Context(), employer)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, emps)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	employeeID := rest[0]
	if len(rest) > 1 && rest[1] == "active" {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Active bool `json:"active"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		emp, err := h.app.Roster.SetActive(r.Context(), employeeID, payload.Active)
		if err != nil {
			writeError(w, storeStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, emp)
		return
	}
	if len(rest) > 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		emp, err := h.app.Roster.GetEmployee(r.Context(), employeeID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, emp)

	case http.MethodPut:
		var payload struct {
			Name     *string `json:"name"`
			Salary   *int64  `json:"salary"`
			Schedule *string `json:"schedule"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		emp, err := h.app.Roster.UpdateEmployee(r.Context(), employeeID, payload.Name, payload.Salary, payload.Schedule)
		if err != nil {
			writeError(w, storeStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, emp)

	case http.MethodDelete:
		if err := h.app.Roster.RemoveEmployee(r.Context(), employeeID); err != nil {
			writeError(w, storeStatus(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) employerPayouts(w http.ResponseWriter, r *http.Request, employer string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	payouts, err := h.app.Roster.ListPayouts(r.Context(), employer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, payouts)
}

func storeStatus(err error) int {
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
