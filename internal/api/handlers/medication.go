package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dom/medtrack/internal/domain"
	"github.com/dom/medtrack/internal/identity"
	"github.com/dom/medtrack/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type MedicationHandler struct {
	adherence *service.AdherenceService
	validate  *validator.Validate
	log       zerolog.Logger
}

func NewMedicationHandler(adherence *service.AdherenceService, log zerolog.Logger) *MedicationHandler {
	return &MedicationHandler{
		adherence: adherence,
		validate:  validator.New(),
		log:       log,
	}
}

type CreateMedicationRequest struct {
	Name         string  `json:"name" validate:"required,max=200"`
	Dosage       string  `json:"dosage" validate:"required,max=100"`
	Frequency    string  `json:"frequency" validate:"max=100"`
	Instructions *string `json:"instructions" validate:"omitempty,max=1000"`
	StartTime    string  `json:"startTime" validate:"required"`
	EndTime      string  `json:"endTime" validate:"required"`
	Color        *string `json:"color" validate:"omitempty,max=64"`
}

type UpdateMedicationRequest struct {
	Name         *string `json:"name" validate:"omitempty,max=200"`
	Dosage       *string `json:"dosage" validate:"omitempty,max=100"`
	Frequency    *string `json:"frequency" validate:"omitempty,max=100"`
	Instructions *string `json:"instructions" validate:"omitempty,max=1000"`
	StartTime    *string `json:"startTime"`
	EndTime      *string `json:"endTime"`
	Color        *string `json:"color" validate:"omitempty,max=64"`
}

type RecordDoseRequest struct {
	ConfirmOutsideWindow bool `json:"confirmOutsideWindow"`
}

type ManualDoseRequest struct {
	TakenAt *time.Time `json:"takenAt" validate:"required"`
	Notes   *string    `json:"notes" validate:"omitempty,max=1000"`
}

type MedicationResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Dosage       string    `json:"dosage"`
	Frequency    string    `json:"frequency,omitempty"`
	Instructions *string   `json:"instructions,omitempty"`
	StartTime    string    `json:"startTime"`
	EndTime      string    `json:"endTime"`
	Color        *string   `json:"color,omitempty"`
	WithinWindow bool      `json:"withinWindow"`
	WindowState  string    `json:"windowState"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type DoseResponse struct {
	ID           string    `json:"id"`
	MedicationID string    `json:"medicationId"`
	TakenAt      time.Time `json:"takenAt"`
	Notes        *string   `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toMedicationResponse(v *service.MedicationView) MedicationResponse {
	m := v.Medication
	return MedicationResponse{
		ID:           m.ID.String(),
		Name:         m.Name,
		Dosage:       m.Dosage,
		Frequency:    m.Frequency,
		Instructions: m.Instructions,
		StartTime:    domain.FormatTimeOfDay(m.StartTime),
		EndTime:      domain.FormatTimeOfDay(m.EndTime),
		Color:        m.Color,
		WithinWindow: v.State == domain.WithinWindow,
		WindowState:  string(v.State),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toDoseResponse(d *domain.Dose) DoseResponse {
	return DoseResponse{
		ID:           d.ID.String(),
		MedicationID: d.MedicationID.String(),
		TakenAt:      d.TakenAt,
		Notes:        d.Notes,
		CreatedAt:    d.CreatedAt,
	}
}

func (h *MedicationHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.adherence.ListMedications(r.Context(), identity.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, h.log, "medication.List", err)
		return
	}

	resp := make([]MedicationResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toMedicationResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MedicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMedicationRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	view, err := h.adherence.CreateMedication(r.Context(), identity.ActorFromContext(r.Context()), service.CreateMedicationInput{
		Name:         req.Name,
		Dosage:       req.Dosage,
		Frequency:    req.Frequency,
		Instructions: req.Instructions,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Color:        req.Color,
	})
	if err != nil {
		writeServiceError(w, h.log, "medication.Create", err)
		return
	}

	writeJSON(w, http.StatusCreated, toMedicationResponse(view))
}

func (h *MedicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	view, err := h.adherence.GetMedication(r.Context(), identity.ActorFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.log, "medication.Get", err)
		return
	}

	writeJSON(w, http.StatusOK, toMedicationResponse(view))
}

func (h *MedicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateMedicationRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	view, err := h.adherence.UpdateMedication(r.Context(), identity.ActorFromContext(r.Context()), id, service.UpdateMedicationInput{
		Name:         req.Name,
		Dosage:       req.Dosage,
		Frequency:    req.Frequency,
		Instructions: req.Instructions,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Color:        req.Color,
	})
	if err != nil {
		writeServiceError(w, h.log, "medication.Update", err)
		return
	}

	writeJSON(w, http.StatusOK, toMedicationResponse(view))
}

func (h *MedicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.adherence.DeleteMedication(r.Context(), identity.ActorFromContext(r.Context()), id); err != nil {
		writeServiceError(w, h.log, "medication.Delete", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RecordDose takes an optional body. Without confirmOutsideWindow a dose
// outside the window is answered with 409 out_of_window_unconfirmed.
func (h *MedicationHandler) RecordDose(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req RecordDoseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body")
		return
	}

	dose, err := h.adherence.RecordDose(r.Context(), identity.ActorFromContext(r.Context()), id, req.ConfirmOutsideWindow)
	if err != nil {
		writeServiceError(w, h.log, "medication.RecordDose", err)
		return
	}

	writeJSON(w, http.StatusCreated, toDoseResponse(dose))
}

func (h *MedicationHandler) RecordManualDose(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req ManualDoseRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	dose, err := h.adherence.RecordManualDose(r.Context(), identity.ActorFromContext(r.Context()), id, service.ManualDoseInput{
		TakenAt: *req.TakenAt,
		Notes:   req.Notes,
	})
	if err != nil {
		writeServiceError(w, h.log, "medication.RecordManualDose", err)
		return
	}

	writeJSON(w, http.StatusCreated, toDoseResponse(dose))
}

func (h *MedicationHandler) ListDoses(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	doses, err := h.adherence.ListMedicationDoses(r.Context(), identity.ActorFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.log, "medication.ListDoses", err)
		return
	}

	resp := make([]DoseResponse, 0, len(doses))
	for _, d := range doses {
		resp = append(resp, toDoseResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeErr(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
