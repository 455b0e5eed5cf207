package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/models"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/repository"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/services"
)

type availabilityApplicationService interface {
	SetAvailability(ctx context.Context, counsellorID int64, entries []services.AvailabilityTemplateEntry) error
	ListTemplate(ctx context.Context, counsellorID int64) ([]models.AvailabilityEntry, error)
	FreeSlots(ctx context.Context, counsellorID int64, dayOfWeek string) ([]string, error)
}

type counsellorProfileStore interface {
	GetByUserID(ctx context.Context, userID int64) (*models.CounsellorProfile, error)
	UpdateRate(ctx context.Context, userID int64, hourlyRate float64) (*models.CounsellorProfile, error)
}

type AvailabilityHandler struct {
	service     availabilityApplicationService
	profileRepo counsellorProfileStore
}

func NewAvailabilityHandler(
	service *services.AvailabilityService,
	profileRepo *repository.CounsellorProfileRepository,
) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, profileRepo: profileRepo}
}

type setAvailabilityRequest struct {
	Entries []services.AvailabilityTemplateEntry `json:"entries"`
}

type updateRateRequest struct {
	HourlyRate float64 `json:"hourly_rate"`
}

func (h *AvailabilityHandler) SetAvailability(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleCounsellor {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	counsellorID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req setAvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := h.service.SetAvailability(c.Context(), counsellorID, req.Entries); err != nil {
		return mapAvailabilityError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Availability updated"})
}

func (h *AvailabilityHandler) GetTemplate(c *fiber.Ctx) error {
	counsellorID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid counsellor id"})
	}

	entries, err := h.service.ListTemplate(c.Context(), counsellorID)
	if err != nil {
		return mapAvailabilityError(c, err)
	}

	return c.JSON(fiber.Map{"availability": entries})
}

func (h *AvailabilityHandler) FreeSlots(c *fiber.Ctx) error {
	counsellorID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid counsellor id"})
	}

	day := strings.TrimSpace(c.Query("day"))
	if day == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "day query parameter is required"})
	}

	slots, err := h.service.FreeSlots(c.Context(), counsellorID, day)
	if err != nil {
		return mapAvailabilityError(c, err)
	}

	return c.JSON(fiber.Map{"slots": slots})
}

func (h *AvailabilityHandler) UpdateRate(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleCounsellor {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	counsellorID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req updateRateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.HourlyRate <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "hourly_rate must be greater than 0"})
	}

	profile, err := h.profileRepo.UpdateRate(c.Context(), counsellorID, req.HourlyRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Counsellor profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update rate"})
	}

	return c.JSON(fiber.Map{"profile": profile})
}

func mapAvailabilityError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidDay),
		errors.Is(err, services.ErrInvalidPeriod),
		errors.Is(err, services.ErrInvalidStartTime),
		errors.Is(err, services.ErrDuplicateSlot):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Counsellor not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process availability request"})
	}
}
