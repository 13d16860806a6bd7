package handler

import (
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/essaymark/essaymark-go-api/internal/dto"
	"github.com/essaymark/essaymark-go-api/internal/examiner"
	"github.com/essaymark/essaymark-go-api/internal/service"
	"github.com/essaymark/essaymark-go-api/internal/utils"
)

// GradingHandler exposes the grading endpoints.
type GradingHandler struct {
	service   service.GradingService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(service service.GradingService, validator *validator.Validate, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Post("", h.grade)
	router.Get("", h.list)
	router.Get("/:id", h.get)
}

func (h *GradingHandler) grade(c *fiber.Ctx) error {
	var payload dto.GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendErrorCode(c, fiber.StatusBadRequest, "validation_error", "invalid request body")
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendErrorCode(c, fiber.StatusBadRequest, "validation_error", err.Error())
	}

	user := userContextFromLocals(c)
	if user.ID == "" {
		return utils.SendErrorCode(c, fiber.StatusUnauthorized, "unauthorized", "unauthorized")
	}

	response, err := h.service.Grade(c.Context(), user, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "essay graded", response)
}

func (h *GradingHandler) get(c *fiber.Ctx) error {
	user := userContextFromLocals(c)
	if user.ID == "" {
		return utils.SendErrorCode(c, fiber.StatusUnauthorized, "unauthorized", "unauthorized")
	}

	response, err := h.service.Get(c.Context(), user, c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grading retrieved", response)
}

func (h *GradingHandler) list(c *fiber.Ctx) error {
	user := userContextFromLocals(c)
	if user.ID == "" {
		return utils.SendErrorCode(c, fiber.StatusUnauthorized, "unauthorized", "unauthorized")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendErrorCode(c, fiber.StatusBadRequest, "validation_error", "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendErrorCode(c, fiber.StatusBadRequest, "validation_error", "invalid offset")
	}

	response, err := h.service.List(c.Context(), user, limit, offset)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "gradings retrieved", response)
}

func (h *GradingHandler) handleError(c *fiber.Ctx, err error) error {
	var rateLimited *service.RateLimitError
	var validationErrors validator.ValidationErrors

	switch {
	case errors.As(err, &rateLimited):
		retryAfter := rateLimited.Decision.RetryAfter(time.Now())
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		return utils.SendErrorCode(c, fiber.StatusTooManyRequests, "rate_limited", "rate limit exceeded, retry later")
	case errors.Is(err, service.ErrCompleterUnavailable):
		return utils.SendErrorCode(c, fiber.StatusServiceUnavailable, "ai_unavailable", "grading service unavailable")
	case errors.Is(err, service.ErrSubjectForbidden):
		return utils.SendErrorCode(c, fiber.StatusForbidden, "subject_forbidden", "subject not permitted for this account")
	case errors.Is(err, service.ErrGradingNotFound):
		return utils.SendErrorCode(c, fiber.StatusNotFound, "not_found", "grading not found")
	case errors.Is(err, examiner.ErrUnknownSubject), errors.Is(err, examiner.ErrUnknownQuestionType), errors.Is(err, service.ErrContentEmpty):
		return utils.SendErrorCode(c, fiber.StatusBadRequest, "validation_error", err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendErrorCode(c, fiber.StatusBadRequest, "validation_error", validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("grading operation failed")
		return utils.SendErrorCode(c, fiber.StatusInternalServerError, "internal_error", "internal server error")
	}
}
