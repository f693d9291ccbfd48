package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"confreg/internal/delivery/http/helpers"
	"confreg/internal/delivery/http/middleware"
	"confreg/internal/domain"
)

type RegistrationController struct {
	Logger            *slog.Logger
	Service           domain.RegistrationService
	AdditionalService domain.AdditionalRegistrationService
}

func NewRegistrationController(
	logger *slog.Logger,
	svc domain.RegistrationService,
	additionalSvc domain.AdditionalRegistrationService,
) *RegistrationController {
	return &RegistrationController{
		Logger:            logger,
		Service:           svc,
		AdditionalService: additionalSvc,
	}
}

// CreateRegistrationRequest is the request body for POST /registrations.
type CreateRegistrationRequest struct {
	FullName      string   `json:"full_name"`
	Email         string   `json:"email"`
	Category      string   `json:"participant_category"`
	Format        string   `json:"participation_format"`
	EventCodes    []string `json:"event_codes"`
	PaymentMethod string   `json:"payment_method"`
}

// Validate implements helpers.Validator.
func (r *CreateRegistrationRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(r.FullName) == "" {
		errs = append(errs, "full_name is required")
	}
	if strings.TrimSpace(r.Email) == "" {
		errs = append(errs, "email is required")
	}
	if !domain.ParticipantCategory(r.Category).Valid() {
		errs = append(errs, "participant_category is not a known category")
	}
	if !domain.ParticipationFormat(r.Format).Valid() {
		errs = append(errs, "participation_format must be in-person or online")
	}
	if len(r.EventCodes) == 0 {
		errs = append(errs, "event_codes is required")
	}
	if r.PaymentMethod == "" {
		r.PaymentMethod = "bank_transfer"
	}
	return errs
}

// CreateRegistrationResponse is the success payload for POST /registrations.
type CreateRegistrationResponse struct {
	Registration *domain.Registration `json:"registration"`
	Payment      *domain.Payment      `json:"payment"`
}

// Create godoc
// @Summary Create the registration for the authenticated user
// @Description Prices the selected events, freezes the category snapshot, and creates the initial payment in one transaction.
// @Tags registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body controllers.CreateRegistrationRequest true "Registration payload"
// @Success 201 {object} helpers.APIResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 422 {object} helpers.APIResponse "error.code: unprocessable (unpriced events)"
// @Router /registrations [post]
func (c *RegistrationController) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	var req CreateRegistrationRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	reg, payment, err := c.Service.CreateRegistration(r.Context(), domain.CreateRegistrationInput{
		UserID:        userID,
		FullName:      req.FullName,
		Email:         req.Email,
		Category:      domain.ParticipantCategory(req.Category),
		Format:        domain.ParticipationFormat(req.Format),
		EventCodes:    req.EventCodes,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyRegistered):
			helpers.WriteJSONError(w, http.StatusConflict, helpers.ErrCodeConflict, "user already has a registration")
		case errors.Is(err, domain.ErrUnpricedEvents):
			helpers.WriteJSONError(w, http.StatusUnprocessableEntity, helpers.ErrCodeUnprocessable, err.Error())
		case errors.Is(err, domain.ErrInvalidInput):
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
		default:
			c.Logger.ErrorContext(r.Context(), "create registration failed", "user_id", userID, "err", err)
			helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "could not create registration, please try again")
		}
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, CreateRegistrationResponse{Registration: reg, Payment: payment})
}

// GetMine godoc
// @Summary Get the authenticated user's registration
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /registrations/me [get]
func (c *RegistrationController) GetMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	reg, err := c.Service.GetMyRegistration(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNoRegistration) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "no registration found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "get registration failed", "user_id", userID, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "could not load registration")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}

// AdditionalEventsRequest is the request body for the additional-events
// quote and create endpoints.
type AdditionalEventsRequest struct {
	EventCodes    []string `json:"event_codes"`
	Category      string   `json:"participant_category"`
	Format        string   `json:"participation_format"`
	PaymentMethod string   `json:"payment_method,omitempty"`
}

// Validate implements helpers.Validator.
func (r *AdditionalEventsRequest) Validate() []string {
	var errs []string
	if len(r.EventCodes) == 0 {
		errs = append(errs, "event_codes is required")
	}
	if !domain.ParticipantCategory(r.Category).Valid() {
		errs = append(errs, "participant_category is not a known category")
	}
	if !domain.ParticipationFormat(r.Format).Valid() {
		errs = append(errs, "participation_format must be in-person or online")
	}
	if r.PaymentMethod == "" {
		r.PaymentMethod = "bank_transfer"
	}
	return errs
}

// QuoteAdditional godoc
// @Summary Quote fees for adding events to an existing registration
// @Description Returns can_register=false with the blocked events when any requested event is already covered by a settled payment.
// @Tags registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body controllers.AdditionalEventsRequest true "Additional events payload"
// @Success 200 {object} helpers.APIResponse
// @Router /registrations/additional/quote [post]
func (c *RegistrationController) QuoteAdditional(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	var req AdditionalEventsRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	quote, err := c.AdditionalService.CalculateAdditionalEventsFees(
		r.Context(), userID, req.EventCodes,
		domain.ParticipantCategory(req.Category),
		domain.ParticipationFormat(req.Format),
	)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
			return
		}
		c.Logger.ErrorContext(r.Context(), "additional fee quote failed", "user_id", userID, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "could not calculate fees")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, quote)
}

// CreateAdditional godoc
// @Summary Add events to an existing registration
// @Description Creates the incremental payment and attaches the new events atomically. A business-rule rejection (already-paid events) returns 200 with success=false.
// @Tags registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body controllers.AdditionalEventsRequest true "Additional events payload"
// @Success 201 {object} helpers.APIResponse
// @Router /registrations/additional [post]
func (c *RegistrationController) CreateAdditional(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	var req AdditionalEventsRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := c.AdditionalService.CreateAdditionalRegistration(
		r.Context(), userID, req.EventCodes,
		domain.ParticipantCategory(req.Category),
		domain.ParticipationFormat(req.Format),
		req.PaymentMethod,
	)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
			return
		}
		c.Logger.ErrorContext(r.Context(), "additional registration failed", "user_id", userID, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "could not create additional registration, please try again")
		return
	}
	if !result.Success {
		helpers.WriteJSONSuccess(w, http.StatusOK, result)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, result)
}
