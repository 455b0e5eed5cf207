package handlers

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/models"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/services"
)

type paymentApplicationService interface {
	Initiate(ctx context.Context, actorID int64, sessionID int64) (*services.PaymentForm, error)
	Reconcile(ctx context.Context, encodedPayload string, success bool) error
}

type PaymentHandler struct {
	service paymentApplicationService
}

func NewPaymentHandler(service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

func (h *PaymentHandler) Initiate(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleUser {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	userID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	form, err := h.service.Initiate(c.Context(), userID, sessionID)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.JSON(fiber.Map{"payment": form})
}

// SuccessCallback and FailureCallback are hit by the gateway's redirect.
// The gateway expects a 200 no matter what, so bad payloads are logged and
// acknowledged instead of surfaced.
func (h *PaymentHandler) SuccessCallback(c *fiber.Ctx) error {
	return h.reconcile(c, true)
}

func (h *PaymentHandler) FailureCallback(c *fiber.Ctx) error {
	return h.reconcile(c, false)
}

func (h *PaymentHandler) reconcile(c *fiber.Ctx, success bool) error {
	payload := c.Query("data")
	if err := h.service.Reconcile(c.Context(), payload, success); err != nil {
		log.Printf("payments: callback dropped (success=%t): %v", success, err)
	}
	return c.JSON(fiber.Map{"message": "Payment callback received"})
}

func mapPaymentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrAlreadyPaid):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrCounsellorRateMissing):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to initiate payment"})
	}
}
