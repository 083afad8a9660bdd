package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dom/medtrack/internal/domain"
	"github.com/dom/medtrack/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// API error codes returned in {"error": "...", "code": "..."}
const (
	ErrCodeInvalidRequest         = "invalid_request"
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeForbidden              = "forbidden"
	ErrCodeNotFound               = "not_found"
	ErrCodeConflict               = "conflict"
	ErrCodeOutOfWindowUnconfirmed = "out_of_window_unconfirmed"
	ErrCodeEmailExists            = "email_exists"
	ErrCodeInvalidCredentials     = "invalid_credentials"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeInternal               = "internal_error"
)

// writeErr sends {"error": message, "code": errCode}. An empty errCode
// falls back to one derived from the status.
func writeErr(w http.ResponseWriter, status int, errCode string, message string) {
	if errCode == "" {
		errCode = defaultErrCode(status)
	}
	writeJSON(w, status, map[string]string{"error": message, "code": errCode})
}

func defaultErrCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ErrCodeInvalidRequest
	case http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case http.StatusForbidden:
		return ErrCodeForbidden
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusConflict:
		return ErrCodeConflict
	default:
		return ErrCodeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps an engine error onto a response. Store failures
// and anything unrecognised are logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		writeErr(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
	case errors.Is(err, domain.ErrUnauthorized):
		writeErr(w, http.StatusForbidden, ErrCodeForbidden, "Not allowed")
	case errors.Is(err, domain.ErrOutOfWindowUnconfirmed):
		writeErr(w, http.StatusConflict, ErrCodeOutOfWindowUnconfirmed, "Dose is outside the medication window; confirm to record it")
	case errors.Is(err, domain.ErrNotFound):
		writeErr(w, http.StatusNotFound, ErrCodeNotFound, "Not found")
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidTimeOfDay):
		writeErr(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
	case errors.Is(err, service.ErrEmailExists):
		writeErr(w, http.StatusConflict, ErrCodeEmailExists, "Email already exists")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeErr(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Invalid credentials")
	case errors.Is(err, service.ErrInvalidRefreshToken):
		writeErr(w, http.StatusUnauthorized, ErrCodeInvalidToken, "Invalid or expired refresh token")
	default:
		log.Error().Err(err).Str("op", op).Msg("request failed")
		writeErr(w, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
	}
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags
func decodeAndValidate(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErr(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeErr(w, http.StatusBadRequest, ErrCodeInvalidRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fe.Field() + " failed on the '" + fe.Tag() + "' rule"
	}
	return "Invalid request"
}
