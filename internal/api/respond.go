package api

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders {error, message, ...fields}.
func writeError(w http.ResponseWriter, status int, code, message string, fields map[string]any) {
	body := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		body[k] = v
	}
	body["error"] = code
	body["message"] = message
	writeJSON(w, status, body)
}

var statusByCode = map[string]int{
	appointment.ErrInvalidRequest.Code:          http.StatusUnprocessableEntity,
	appointment.ErrForbidden.Code:               http.StatusForbidden,
	appointment.ErrDoctorNotFound.Code:          http.StatusUnprocessableEntity,
	appointment.ErrPatientNotFound.Code:         http.StatusNotFound,
	appointment.ErrSlotNotFound.Code:            http.StatusNotFound,
	appointment.ErrAppointmentNotFound.Code:     http.StatusNotFound,
	appointment.ErrPaymentNotFound.Code:         http.StatusNotFound,
	appointment.ErrSlotAlreadyBooked.Code:       http.StatusConflict,
	appointment.ErrSlotBeingBooked.Code:         http.StatusConflict,
	appointment.ErrDoctorInactive.Code:          http.StatusForbidden,
	appointment.ErrAccountBlocked.Code:          http.StatusForbidden,
	appointment.ErrWalletNotActivated.Code:      http.StatusBadRequest,
	appointment.ErrInvalidPIN.Code:              http.StatusUnauthorized,
	appointment.ErrInsufficientBalance.Code:     http.StatusBadRequest,
	appointment.ErrAlreadyCompleted.Code:        http.StatusNotFound,
	appointment.ErrInvalidTransition.Code:       http.StatusNotFound,
	appointment.ErrInsufficientClinicFunds.Code: http.StatusInternalServerError,
	appointment.ErrLockTimeout.Code:             http.StatusInternalServerError,
}

// errorResponder maps domain errors onto the HTTP contract. On cancellation
// routes every server-side failure is reported as cancellation_failed.
type errorResponder struct {
	log          *zap.Logger
	cancellation bool
}

func (e errorResponder) respond(w http.ResponseWriter, r *http.Request, err error) {
	var derr *appointment.Error
	if !errors.As(err, &derr) {
		e.log.Error("request failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		if e.cancellation {
			writeError(w, http.StatusInternalServerError, "cancellation_failed", "Failed to cancel appointment", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
		return
	}

	status, ok := statusByCode[derr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		e.log.Error("request failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("code", derr.Code),
			zap.Error(err),
		)
		if e.cancellation {
			writeError(w, status, "cancellation_failed", derr.Message, map[string]any{"reason": derr.Code})
			return
		}
	}
	writeError(w, status, derr.Code, derr.Message, derr.Fields)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// An empty body is treated as an empty object.
func decodeAndValidate(r *http.Request, dst any) error {
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			return appointment.ErrInvalidRequest.With(map[string]any{"body": "could not parse JSON"})
		}
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]any, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fieldMessage(fe)
			}
			return appointment.ErrInvalidRequest.With(fields)
		}
		return appointment.ErrInvalidRequest.Wrap(err)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "numeric":
		return "must contain digits only"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}
