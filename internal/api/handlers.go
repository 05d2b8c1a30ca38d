package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/wallet"
)

type AppointmentService interface {
	Book(ctx context.Context, caller appointment.Caller, req appointment.BookingRequest) (*appointment.BookingResult, error)
	Cancel(ctx context.Context, caller appointment.Caller, id uuid.UUID, reason string) (*appointment.CancellationResult, error)
	CancelByDoctor(ctx context.Context, caller appointment.Caller, id uuid.UUID, reason string, emergency bool) (*appointment.CancellationResult, error)
	Reschedule(ctx context.Context, caller appointment.Caller, id, newSlotID uuid.UUID) (*appointment.RescheduleResult, error)
	GetAppointment(ctx context.Context, caller appointment.Caller, id uuid.UUID) (*appointment.AppointmentView, error)
	TopUp(ctx context.Context, caller appointment.Caller, patientID uuid.UUID, amount wallet.Money, notes string) (*appointment.TopUpResult, error)
}

var _ AppointmentService = (*appointment.Service)(nil)

type handlers struct {
	svc    AppointmentService
	errs   errorResponder
	cancel errorResponder
}

func newHandlers(svc AppointmentService, log *zap.Logger) *handlers {
	return &handlers{
		svc:    svc,
		errs:   errorResponder{log: log},
		cancel: errorResponder{log: log, cancellation: true},
	}
}

func urlUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, appointment.ErrInvalidRequest.With(map[string]any{name: "must be a valid UUID"})
	}
	return id, nil
}

func (h *handlers) bookAppointment(w http.ResponseWriter, r *http.Request) {
	caller := CallerFromContext(r.Context())

	var req BookAppointmentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errs.respond(w, r, err)
		return
	}

	res, err := h.svc.Book(r.Context(), caller, appointment.BookingRequest{
		DoctorID:  uuid.MustParse(req.DoctorID),
		SlotID:    uuid.MustParse(req.SlotID),
		Method:    appointment.PaymentMethod(req.Method),
		WalletPIN: req.WalletPIN,
	})
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, BookingResponse{
		AppointmentID:        res.AppointmentID,
		DoctorID:             res.DoctorID,
		ClinicID:             res.ClinicID,
		SlotID:               res.SlotID,
		AppointmentDate:      res.AppointmentDate,
		Price:                res.Price,
		PaymentMethod:        string(res.Method),
		PaymentStatus:        string(res.PaymentStatus),
		TransactionReference: res.TransactionReference,
	})
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	caller := CallerFromContext(r.Context())

	id, err := urlUUID(r, "id")
	if err != nil {
		h.cancel.respond(w, r, err)
		return
	}
	var req CancelAppointmentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.cancel.respond(w, r, err)
		return
	}

	res, err := h.svc.Cancel(r.Context(), caller, id, req.Reason)
	if err != nil {
		h.cancel.respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cancellationResponse(res))
}

func (h *handlers) doctorCancelAppointment(w http.ResponseWriter, r *http.Request) {
	caller := CallerFromContext(r.Context())

	id, err := urlUUID(r, "id")
	if err != nil {
		h.cancel.respond(w, r, err)
		return
	}
	var req DoctorCancelRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.cancel.respond(w, r, err)
		return
	}

	res, err := h.svc.CancelByDoctor(r.Context(), caller, id, req.Reason, req.Emergency)
	if err != nil {
		h.cancel.respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cancellationResponse(res))
}

func cancellationResponse(res *appointment.CancellationResult) CancellationResponse {
	return CancellationResponse{
		AppointmentID:     res.AppointmentID,
		SlotFreed:         res.SlotFreed,
		RefundProcessed:   res.RefundProcessed,
		RefundAmount:      res.RefundAmount,
		DiscountApplied:   res.DiscountApplied,
		OriginalAmount:    res.OriginalAmount,
		NewPatientBalance: res.NewPatientBalance,
	}
}

func (h *handlers) rescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	caller := CallerFromContext(r.Context())

	id, err := urlUUID(r, "id")
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}
	var req RescheduleRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errs.respond(w, r, err)
		return
	}

	res, err := h.svc.Reschedule(r.Context(), caller, id, uuid.MustParse(req.SlotID))
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RescheduleResponse{
		AppointmentID:   res.AppointmentID,
		OldSlotID:       res.OldSlotID,
		NewSlotID:       res.NewSlotID,
		AppointmentDate: res.AppointmentDate,
	})
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	caller := CallerFromContext(r.Context())

	id, err := urlUUID(r, "id")
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}

	view, err := h.svc.GetAppointment(r.Context(), caller, id)
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}

	a := view.Appointment
	resp := AppointmentResponse{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		DoctorID:           a.DoctorID,
		ClinicID:           a.ClinicID,
		SlotID:             a.TimeSlotID,
		AppointmentDate:    a.AppointmentDate,
		Status:             string(a.Status),
		PaymentStatus:      string(view.PaymentStatus),
		Price:              a.Price,
		CancellationReason: a.CancellationReason,
		CancelledAt:        a.CancelledAt,
	}
	if p := view.Payment; p != nil {
		resp.Payment = &PaymentResponse{
			ID:                   p.ID,
			Amount:               p.Amount,
			Method:               string(p.Method),
			Status:               string(p.Status),
			TransactionReference: p.TransactionReference,
			RefundAmount:         p.RefundAmount,
			DiscountApplied:      p.DiscountApplied,
			PaidAt:               p.PaidAt,
			RefundedAt:           p.RefundedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) topUpWallet(w http.ResponseWriter, r *http.Request) {
	caller := CallerFromContext(r.Context())

	patientID, err := urlUUID(r, "patientId")
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}
	var req TopUpRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errs.respond(w, r, err)
		return
	}

	res, err := h.svc.TopUp(r.Context(), caller, patientID, wallet.FromFloat(req.Amount), req.Notes)
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TopUpResponse{
		PatientID:  res.PatientID,
		Amount:     res.Amount,
		NewBalance: res.NewBalance,
		Reference:  res.Reference,
	})
}
