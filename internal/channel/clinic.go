package channel

import (
	"errors"
	"net/http"
	"strings"

	"bizassist/internal/auth"
	"bizassist/internal/domain"
	"bizassist/internal/store"
)

func (s *Server) handlePatientSession(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r.Context(), s.logger)

	var body struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	if !validEmail(body.Email) {
		writeMessage(w, http.StatusBadRequest, "Valid email is required")
		return
	}
	if !s.patients.Configured() {
		logger.Error("patient token secret not configured")
		writeMessage(w, http.StatusInternalServerError, "Authentication configuration error.")
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		name = "Patient"
	}
	patient, err := s.store.FindOrCreatePatient(r.Context(), body.Email, name)
	if errors.Is(err, store.ErrConflict) {
		writeMessage(w, http.StatusConflict, "Error processing patient data. Please try again.")
		return
	}
	if err != nil {
		logger.Error("patient session failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	token, err := s.patients.Issue(domain.Principal{
		ID: patient.ID, Scope: patient.ID, Email: patient.Email, Kind: domain.KindPatient,
	}, s.patientTTL)
	if err != nil {
		logger.Error("token issue failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	logger.Info("patient session initiated", "patient_id", patient.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Patient session initiated",
		"token":   token,
		"patient": map[string]string{
			"id":    patient.ID,
			"email": patient.Email,
			"name":  patient.Name,
		},
	})
}

func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	appts, err := s.store.ListAppointments(r.Context(), p.PatientID())
	if err != nil {
		requestLogger(r.Context(), s.logger).Error("list appointments failed", "patient_id", p.PatientID(), "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error while fetching appointments.")
		return
	}
	if appts == nil {
		appts = []domain.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	var body struct {
		StartsAt string `json:"startsAt"`
		EndsAt   string `json:"endsAt"`
		Reason   string `json:"reason"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	startsAt, ok := parseISOTime(body.StartsAt)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Valid startsAt (ISO 8601 date string) is required.")
		return
	}
	endsAt, ok := parseISOTime(body.EndsAt)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Valid endsAt (ISO 8601 date string) is required.")
		return
	}
	if !startsAt.Before(endsAt) {
		writeMessage(w, http.StatusBadRequest, "endsAt must be after startsAt.")
		return
	}

	appt, err := s.store.CreateAppointment(r.Context(), p.PatientID(), startsAt, endsAt, body.Reason)
	if err != nil {
		requestLogger(r.Context(), s.logger).Error("create appointment failed", "patient_id", p.PatientID(), "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error while booking appointment.")
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (s *Server) handleListFAQs(w http.ResponseWriter, r *http.Request) {
	faqs, err := s.store.ListFAQs(r.Context())
	if err != nil {
		logger := requestLogger(r.Context(), s.logger)
		if pingErr := s.store.Ping(r.Context()); pingErr != nil {
			logger.Error("database unreachable", "err", pingErr)
			writeMessage(w, http.StatusServiceUnavailable, "Service Unavailable: Cannot connect to database.")
			return
		}
		logger.Error("list faqs failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error while fetching FAQs.")
		return
	}
	if faqs == nil {
		faqs = []domain.FAQ{}
	}
	writeJSON(w, http.StatusOK, faqs)
}
