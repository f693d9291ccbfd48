package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"confreg/internal/delivery/http/helpers"
	"confreg/internal/delivery/http/middleware"
	"confreg/internal/domain"
)

type EventController struct {
	Logger            *slog.Logger
	Events            domain.EventRepository
	AdditionalService domain.AdditionalRegistrationService
}

func NewEventController(logger *slog.Logger, events domain.EventRepository, additionalSvc domain.AdditionalRegistrationService) *EventController {
	return &EventController{Logger: logger, Events: events, AdditionalService: additionalSvc}
}

// List godoc
// @Summary List all events
// @Tags events
// @Produce json
// @Success 200 {object} helpers.APIResponse
// @Router /events [get]
func (c *EventController) List(w http.ResponseWriter, r *http.Request) {
	events, err := c.Events.List(r.Context())
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "list events failed", "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "could not list events")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, events)
}

// Get godoc
// @Summary Get one event by code
// @Tags events
// @Produce json
// @Param code path string true "Event code"
// @Success 200 {object} helpers.APIResponse
// @Failure 404 {object} helpers.APIResponse
// @Router /events/{code} [get]
func (c *EventController) Get(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	event, err := c.Events.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "get event failed", "code", code, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "could not load event")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, event)
}

// EligibilityRequest is the request body for POST /events/eligibility.
type EligibilityRequest struct {
	EventCodes []string `json:"event_codes"`
}

// Validate implements helpers.Validator.
func (r *EligibilityRequest) Validate() []string {
	if len(r.EventCodes) == 0 {
		return []string{"event_codes is required"}
	}
	return nil
}

// Eligibility godoc
// @Summary Check whether the authenticated user may register for events
// @Description Events already covered by a settled payment come back in already_paid_events.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body controllers.EligibilityRequest true "Event codes to check"
// @Success 200 {object} helpers.APIResponse
// @Router /events/eligibility [post]
func (c *EventController) Eligibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	var req EligibilityRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	eligibility, err := c.AdditionalService.CanUserRegisterForEvents(r.Context(), userID, req.EventCodes)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "eligibility check failed", "user_id", userID, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "could not check eligibility")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, eligibility)
}

// MyEvents godoc
// @Summary List the events the authenticated user holds through settled payments
// @Tags events
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse
// @Router /events/mine [get]
func (c *EventController) MyEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	codes, err := c.AdditionalService.UserAccessibleEvents(r.Context(), userID)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "list user events failed", "user_id", userID, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "could not list events")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, map[string][]string{"event_codes": codes})
}
