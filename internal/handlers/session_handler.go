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

type bookingApplicationService interface {
	RequestBooking(ctx context.Context, userID int64, request services.BookingRequest) (*models.Session, error)
}

type sessionApplicationService interface {
	Accept(ctx context.Context, counsellorID int64, sessionID int64) (*models.Session, error)
	Reject(ctx context.Context, counsellorID int64, sessionID int64, message string) (*models.Session, error)
	AttachFeedback(ctx context.Context, userID int64, sessionID int64, rating int, feedback string) (*models.Session, error)
	GetSession(ctx context.Context, actorID int64, role string, sessionID int64) (*models.Session, error)
	ListSessions(ctx context.Context, actorID int64, role string, filter repository.SessionListFilter) ([]models.Session, error)
}

type SessionHandler struct {
	bookingService bookingApplicationService
	sessionService sessionApplicationService
}

func NewSessionHandler(
	bookingService *services.BookingService,
	sessionService *services.SessionService,
) *SessionHandler {
	return &SessionHandler{
		bookingService: bookingService,
		sessionService: sessionService,
	}
}

type bookSessionRequest struct {
	CounsellorID int64   `json:"counsellor_id"`
	DayOfWeek    string  `json:"day_of_week"`
	StartTime    string  `json:"start_time"`
	Note         *string `json:"note"`
}

type rejectSessionRequest struct {
	Message string `json:"message"`
}

type feedbackRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

func (h *SessionHandler) BookSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleUser {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	userID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req bookSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := h.bookingService.RequestBooking(c.Context(), userID, services.BookingRequest{
		CounsellorID: req.CounsellorID,
		DayOfWeek:    req.DayOfWeek,
		StartTime:    req.StartTime,
		Note:         req.Note,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != models.RoleUser && role != models.RoleCounsellor) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	userID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	timeframe := strings.TrimSpace(c.Query("timeframe"))
	if timeframe != "" && timeframe != "upcoming" && timeframe != "past" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "timeframe must be upcoming or past"})
	}

	sessions, err := h.sessionService.ListSessions(c.Context(), userID, role, repository.SessionListFilter{
		Status:    strings.TrimSpace(c.Query("status")),
		Timeframe: timeframe,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != models.RoleUser && role != models.RoleCounsellor) {
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

	session, err := h.sessionService.GetSession(c.Context(), userID, role, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) Accept(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleCounsellor {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	counsellorID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.sessionService.Accept(c.Context(), counsellorID, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) Reject(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleCounsellor {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	counsellorID, err := parseAuthUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req rejectSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.Message = strings.TrimSpace(req.Message)

	session, err := h.sessionService.Reject(c.Context(), counsellorID, sessionID, req.Message)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) AttachFeedback(c *fiber.Ctx) error {
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

	var req feedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := h.sessionService.AttachFeedback(c.Context(), userID, sessionID, req.Rating, strings.TrimSpace(req.Feedback))
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func mapSessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidDay),
		errors.Is(err, services.ErrInvalidStartTime),
		errors.Is(err, services.ErrSlotInPast),
		errors.Is(err, services.ErrRejectionMessageMissing),
		errors.Is(err, services.ErrInvalidRating):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrSlotTaken),
		errors.Is(err, services.ErrAlreadySubmitted):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrSlotNotOffered):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNotPending),
		errors.Is(err, services.ErrNotCompleted),
		errors.Is(err, services.ErrNotJoinable):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrCounsellorNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Counsellor not found"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process session request"})
	}
}
