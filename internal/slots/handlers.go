package slots

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/medcore/hospital-ops/pkg/auth"
	"github.com/medcore/hospital-ops/pkg/logger"
	"github.com/medcore/hospital-ops/pkg/types"
)

// Handler exposes the slot service over HTTP
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new slot HTTP handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes configures slot routes on the router
func (h *Handler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/slots", h.createSlotHandler).Methods("POST")
	api.HandleFunc("/slots/recurring", h.createRecurringSlotsHandler).Methods("POST")
	api.HandleFunc("/slots/{id}", h.getSlotHandler).Methods("GET")
	api.HandleFunc("/slots/{id}/block", h.blockSlotHandler).Methods("POST")
	api.HandleFunc("/slots/{id}/unblock", h.unblockSlotHandler).Methods("POST")
	api.HandleFunc("/practitioners/{practitionerId}/available-slots", h.getAvailableSlotsHandler).Methods("GET")
	api.HandleFunc("/practitioners/{practitionerId}/availability", h.getAvailabilityHandler).Methods("GET")

	h.logger.Info("Slot routes configured")
}

// createSlotHandler handles single slot creation
func (h *Handler) createSlotHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.writeErrorResponse(w, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "authentication required"))
		return
	}

	var input types.SlotInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	slot, err := h.service.CreateSlot(r.Context(), &input, claims.UserID)
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, "Slot created successfully", slot)
}

// createRecurringSlotsHandler handles recurring slot batch creation
func (h *Handler) createRecurringSlotsHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.writeErrorResponse(w, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "authentication required"))
		return
	}

	var request struct {
		Slot    types.SlotInput         `json:"slot"`
		Pattern types.RecurrencePattern `json:"pattern"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	results, err := h.service.CreateRecurringSlots(r.Context(), &request.Slot, &request.Pattern, claims.UserID)
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, "Recurring slots processed", results)
}

// getSlotHandler handles slot retrieval
func (h *Handler) getSlotHandler(w http.ResponseWriter, r *http.Request) {
	slotID := mux.Vars(r)["id"]

	slot, err := h.service.GetSlot(r.Context(), slotID)
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, "", slot)
}

// blockSlotHandler handles manual slot blocking
func (h *Handler) blockSlotHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.writeErrorResponse(w, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "authentication required"))
		return
	}

	slotID := mux.Vars(r)["id"]

	var request struct {
		Reason      string `json:"reason"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	if request.Reason == "" {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "block reason is required", nil))
		return
	}

	if err := h.service.Block(r.Context(), slotID, request.Reason, request.Description, claims.UserID); err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, "Slot blocked successfully", nil)
}

// unblockSlotHandler handles slot unblocking
func (h *Handler) unblockSlotHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.writeErrorResponse(w, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "authentication required"))
		return
	}

	slotID := mux.Vars(r)["id"]

	if err := h.service.Unblock(r.Context(), slotID, claims.UserID); err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, "Slot unblocked successfully", nil)
}

// getAvailableSlotsHandler handles available slot retrieval for a date
func (h *Handler) getAvailableSlotsHandler(w http.ResponseWriter, r *http.Request) {
	practitionerID := mux.Vars(r)["practitionerId"]

	dateParam := r.URL.Query().Get("date")
	if dateParam == "" {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "date parameter is required", nil))
		return
	}

	date, err := time.Parse("2006-01-02", dateParam)
	if err != nil {
		h.writeErrorResponse(w, types.NewValidationError(types.ErrCodeInvalidInput, "date must be formatted YYYY-MM-DD", nil))
		return
	}

	slots, err := h.service.GetAvailableSlots(r.Context(), practitionerID, date)
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, "", slots)
}

// getAvailabilityHandler handles availability range retrieval
func (h *Handler) getAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	practitionerID := mux.Vars(r)["practitionerId"]

	from, err := parseDateParam(r, "from", time.Now())
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	to, err := parseDateParam(r, "to", from.Add(7*24*time.Hour))
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	slots, err := h.service.GetPractitionerAvailability(r.Context(), practitionerID, from, to)
	if err != nil {
		h.writeErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, "", slots)
}

func parseDateParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback, nil
	}

	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, types.NewValidationError(types.ErrCodeInvalidInput,
			name+" must be formatted YYYY-MM-DD", nil)
	}
	return parsed, nil
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
