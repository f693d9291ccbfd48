package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"confreg/internal/delivery/http/helpers"
	"confreg/internal/domain"
)

type FeeController struct {
	Logger  *slog.Logger
	Service domain.FeeCalculationService
}

func NewFeeController(logger *slog.Logger, svc domain.FeeCalculationService) *FeeController {
	return &FeeController{
		Logger:  logger,
		Service: svc,
	}
}

// CalculateFeesRequest is the request body for POST /fees/calculate.
type CalculateFeesRequest struct {
	Category   string   `json:"participant_category"`
	EventCodes []string `json:"event_codes"`
	Format     string   `json:"participation_format"`
	// ReferenceDate optionally overrides "now" for period resolution,
	// RFC 3339 or YYYY-MM-DD.
	ReferenceDate string `json:"reference_date,omitempty"`
}

// Validate implements helpers.Validator.
func (r *CalculateFeesRequest) Validate() []string {
	var errs []string
	if r.Category == "" {
		errs = append(errs, "participant_category is required")
	}
	if len(r.EventCodes) == 0 {
		errs = append(errs, "event_codes is required")
	}
	if !domain.ParticipationFormat(r.Format).Valid() {
		errs = append(errs, "participation_format must be in-person or online")
	}
	if r.ReferenceDate != "" {
		if _, err := parseReferenceDate(r.ReferenceDate); err != nil {
			errs = append(errs, "reference_date must be RFC 3339 or YYYY-MM-DD")
		}
	}
	return errs
}

func parseReferenceDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// CalculateFees godoc
// @Summary Price a set of events for a participant
// @Description Resolves the early/late period per event, applies the main-conference bundling discount, and returns per-event prices plus the total. Events that cannot be priced are reported per item.
// @Tags fees
// @Accept json
// @Produce json
// @Param body body controllers.CalculateFeesRequest true "Fee calculation input"
// @Success 200 {object} helpers.APIResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Router /fees/calculate [post]
func (c *FeeController) CalculateFees(w http.ResponseWriter, r *http.Request) {
	var req CalculateFeesRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	refDate := time.Now()
	if req.ReferenceDate != "" {
		refDate, _ = parseReferenceDate(req.ReferenceDate)
	}

	result, err := c.Service.CalculateFees(
		r.Context(),
		domain.ParticipantCategory(req.Category),
		req.EventCodes,
		refDate,
		domain.ParticipationFormat(req.Format),
		nil,
	)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
			return
		}
		c.Logger.ErrorContext(r.Context(), "fee calculation failed", "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "could not calculate fees")
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, result)
}
