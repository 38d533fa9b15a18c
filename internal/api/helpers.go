package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fdyytu1/store-dc/internal/pkg/lock"
	"github.com/fdyytu1/store-dc/internal/repository"
	"github.com/fdyytu1/store-dc/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}

// decodeStrict decodes a single JSON object and rejects unknown fields
// and trailing content.
func decodeStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("trailing content")
	}
	return nil
}

// writeServiceError maps domain errors onto HTTP statuses and error
// codes. Unexpected errors are logged and surface as a bare 500.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrMaintenanceActive):
		writeError(w, http.StatusServiceUnavailable, "maintenance_active")
	case errors.Is(err, lock.ErrLockTimeout):
		writeError(w, http.StatusServiceUnavailable, "busy")
	case errors.Is(err, service.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount")
	case errors.Is(err, service.ErrInvalidGrowID):
		writeError(w, http.StatusBadRequest, "invalid_grow_id")
	case errors.Is(err, repository.ErrNotRegistered):
		writeError(w, http.StatusNotFound, "not_registered")
	case errors.Is(err, repository.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "product_not_found")
	case errors.Is(err, repository.ErrBalanceNotFound):
		writeError(w, http.StatusNotFound, "balance_not_found")
	case errors.Is(err, repository.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient_stock")
	case errors.Is(err, repository.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, "insufficient_balance")
	case errors.Is(err, repository.ErrStockConflict):
		writeError(w, http.StatusConflict, "stock_conflict")
	case errors.Is(err, repository.ErrGrowIDTaken):
		writeError(w, http.StatusConflict, "grow_id_taken")
	case errors.Is(err, repository.ErrProductExists):
		writeError(w, http.StatusConflict, "product_exists")
	case errors.Is(err, repository.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition")
	case errors.Is(err, service.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission_denied")
	case errors.Is(err, service.ErrNoValidHistory):
		writeError(w, http.StatusUnprocessableEntity, "no_valid_history")
	default:
		s.logger.Error().Str("op", op).Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}
