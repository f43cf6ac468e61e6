package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/medcore/hospital-ops/pkg/auth"
	"github.com/medcore/hospital-ops/pkg/logger"
	"github.com/medcore/hospital-ops/pkg/types"
)

// Handler exposes the booking orchestrator over HTTP
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new booking HTTP handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes configures appointment routes on the router
func (h *Handler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/appointments", h.createAppointmentHandler).Methods("POST")
	api.HandleFunc("/appointments", h.getAppointmentsHandler).Methods("GET")
	api.HandleFunc("/appointments/{id}", h.getAppointmentHandler).Methods("GET")
	api.HandleFunc("/appointments/{id}", h.cancelAppointmentHandler).Methods("DELETE")
	api.HandleFunc("/appointments/{id}/reschedule", h.rescheduleAppointmentHandler).Methods("POST")
	api.HandleFunc("/appointments/{id}/confirm", h.confirmAppointmentHandler).Methods("POST")
	api.HandleFunc("/appointments/{id}/complete", h.completeAppointmentHandler).Methods("POST")

	h.logger.Info("Appointment routes configured")
}

// createAppointmentHandler handles booking requests
func (h *Handler) createAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.writeErrorResponse(w, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "authentication required"))
		return
	}

	var req types.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	apt, err := h.service.CreateAppointment(r.Context(), &req, claims)
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, "Appointment booked successfully", apt)
}

// getAppointmentHandler handles single appointment retrieval
func (h *Handler) getAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	appointmentID := mux.Vars(r)["id"]

	apt, err := h.service.GetAppointment(r.Context(), appointmentID)
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, "", apt)
}

// getAppointmentsHandler handles filtered appointment listing
func (h *Handler) getAppointmentsHandler(w http.ResponseWriter, r *http.Request) {
	filters := parseAppointmentFilters(r)

	appointments, err := h.service.GetAppointments(r.Context(), filters)
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, "", appointments)
}

// cancelAppointmentHandler handles appointment cancellation
func (h *Handler) cancelAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.writeErrorResponse(w, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "authentication required"))
		return
	}

	appointmentID := mux.Vars(r)["id"]

	if err := h.service.CancelAppointment(r.Context(), appointmentID, claims); err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, "Appointment cancelled successfully", nil)
}

// rescheduleAppointmentHandler handles appointment rescheduling
func (h *Handler) rescheduleAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.writeErrorResponse(w, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "authentication required"))
		return
	}

	appointmentID := mux.Vars(r)["id"]

	var request struct {
		NewSlotID string `json:"new_slot_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	if request.NewSlotID == "" {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "new_slot_id is required", nil))
		return
	}

	apt, err := h.service.RescheduleAppointment(r.Context(), appointmentID, request.NewSlotID, claims)
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, "Appointment rescheduled successfully", apt)
}

// confirmAppointmentHandler handles the scheduled to confirmed transition
func (h *Handler) confirmAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.writeErrorResponse(w, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "authentication required"))
		return
	}

	appointmentID := mux.Vars(r)["id"]

	if err := h.service.ConfirmAppointment(r.Context(), appointmentID, claims); err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, "Appointment confirmed successfully", nil)
}

// completeAppointmentHandler handles the confirmed to completed transition
func (h *Handler) completeAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.writeErrorResponse(w, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "authentication required"))
		return
	}

	appointmentID := mux.Vars(r)["id"]

	if err := h.service.CompleteAppointment(r.Context(), appointmentID, claims); err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, "Appointment completed successfully", nil)
}

// parseAppointmentFilters parses query parameters into appointment filters
func parseAppointmentFilters(r *http.Request) *types.AppointmentFilters {
	filters := &types.AppointmentFilters{}

	query := r.URL.Query()
	filters.PatientID = query.Get("patient_id")
	filters.PractitionerID = query.Get("practitioner_id")
	filters.Status = types.AppointmentStatus(query.Get("status"))

	if fromDate := query.Get("from_date"); fromDate != "" {
		if parsed, err := time.Parse("2006-01-02", fromDate); err == nil {
			filters.FromDate = parsed
		}
	}

	if toDate := query.Get("to_date"); toDate != "" {
		if parsed, err := time.Parse("2006-01-02", toDate); err == nil {
			filters.ToDate = parsed
		}
	}

	if limit := query.Get("limit"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil {
			filters.Limit = parsed
		}
	}

	if offset := query.Get("offset"); offset != "" {
		if parsed, err := strconv.Atoi(offset); err == nil {
			filters.Offset = parsed
		}
	}

	return filters
}

// writeJSONResponse writes a success envelope
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]interface{}{
		"success": true,
	}
	if message != "" {
		response["message"] = message
	}
	if data != nil {
		response["data"] = data
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Errorf("Failed to encode JSON response: %v", err)
	}
}

// writeErrorResponse maps structured errors onto HTTP status codes
func (h *Handler) writeErrorResponse(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	errorBody := map[string]interface{}{
		"type": string(types.ErrorTypeInternal),
		"code": types.ErrCodeInternalError,
	}
	message := "internal server error"

	var opsErr *types.OpsError
	if errors.As(err, &opsErr) {
		statusCode = statusForErrorType(opsErr.Type)
		message = opsErr.Message
		errorBody["type"] = string(opsErr.Type)
		errorBody["code"] = opsErr.Code
		if opsErr.Details != nil {
			errorBody["details"] = opsErr.Details
		}
	}

	if statusCode >= http.StatusInternalServerError {
		h.logger.Errorf("Request failed: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
		"error":   errorBody,
	})
}

func statusForErrorType(errorType types.ErrorType) int {
	switch errorType {
	case types.ErrorTypeValidation:
		return http.StatusBadRequest
	case types.ErrorTypeNotFound:
		return http.StatusNotFound
	case types.ErrorTypeConflict:
		return http.StatusConflict
	case types.ErrorTypeBusinessLogic:
		return http.StatusUnprocessableEntity
	case types.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case types.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
