package handlers

import (
	"net/http"

	"github.com/dom/medtrack/internal/identity"
	"github.com/dom/medtrack/internal/service"
	"github.com/rs/zerolog"
)

type DoseHandler struct {
	adherence *service.AdherenceService
	log       zerolog.Logger
}

func NewDoseHandler(adherence *service.AdherenceService, log zerolog.Logger) *DoseHandler {
	return &DoseHandler{adherence: adherence, log: log}
}

// MedicationSummary is the part of a medication shown next to a dose
type MedicationSummary struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Dosage string  `json:"dosage"`
	Color  *string `json:"color,omitempty"`
}

// HistoryEntryResponse carries a null medication once it has been deleted
type HistoryEntryResponse struct {
	Dose       DoseResponse       `json:"dose"`
	Medication *MedicationSummary `json:"medication"`
}

func (h *DoseHandler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.adherence.ListHistory(r.Context(), identity.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, h.log, "dose.History", err)
		return
	}

	resp := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		entry := HistoryEntryResponse{Dose: toDoseResponse(e.Dose)}
		if e.Medication != nil {
			entry.Medication = &MedicationSummary{
				ID:     e.Medication.ID.String(),
				Name:   e.Medication.Name,
				Dosage: e.Medication.Dosage,
				Color:  e.Medication.Color,
			}
		}
		resp = append(resp, entry)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *DoseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	dose, err := h.adherence.GetDose(r.Context(), identity.ActorFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.log, "dose.Get", err)
		return
	}

	writeJSON(w, http.StatusOK, toDoseResponse(dose))
}

func (h *DoseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.adherence.DeleteDose(r.Context(), identity.ActorFromContext(r.Context()), id); err != nil {
		writeServiceError(w, h.log, "dose.Delete", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
