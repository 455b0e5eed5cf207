package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/models"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/repository"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrCounsellorNotFound = errors.New("counsellor not found")
	ErrSlotNotOffered     = errors.New("slot not offered")
	ErrSlotTaken          = errors.New("slot already booked")
)

type bookingUserReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type offeredChecker interface {
	IsOffered(ctx context.Context, counsellorID int64, dayOfWeek string, startTime string) (bool, error)
}

type BookingService struct {
	db               *pgxpool.Pool
	userRepo         bookingUserReader
	availabilityRepo offeredChecker
	loc              *time.Location
	now              func() time.Time
}

func NewBookingService(
	db *pgxpool.Pool,
	userRepo *repository.UserRepository,
	availabilityRepo *repository.AvailabilityRepository,
	loc *time.Location,
) *BookingService {
	return &BookingService{
		db:               db,
		userRepo:         userRepo,
		availabilityRepo: availabilityRepo,
		loc:              loc,
		now:              time.Now,
	}
}

type BookingRequest struct {
	CounsellorID int64
	DayOfWeek    string
	StartTime    string
	Note         *string
}

// RequestBooking resolves a recurring (day, time) slot to its next concrete
// UTC instant, verifies the counsellor offers it, and reserves it as a
// pending session. Competing pending requests for the same slot are allowed;
// exclusivity is enforced at acceptance time.
func (s *BookingService) RequestBooking(
	ctx context.Context,
	userID int64,
	request BookingRequest,
) (*models.Session, error) {
	if request.CounsellorID <= 0 {
		return nil, ErrInvalidInput
	}
	if userID == request.CounsellorID {
		return nil, ErrInvalidInput
	}
	if request.Note != nil && strings.TrimSpace(*request.Note) == "" {
		return nil, ErrInvalidInput
	}

	day, weekday, err := parseDayOfWeek(request.DayOfWeek)
	if err != nil {
		return nil, err
	}
	startTime, hour, err := parseStartTime(request.StartTime)
	if err != nil {
		return nil, err
	}

	scheduledAt, err := nextOccurrence(s.now(), s.loc, weekday, hour)
	if err != nil {
		return nil, err
	}

	counsellor, err := s.userRepo.GetByID(ctx, request.CounsellorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCounsellorNotFound
		}
		return nil, err
	}
	if counsellor.Role != models.RoleCounsellor {
		return nil, ErrCounsellorNotFound
	}

	offered, err := s.availabilityRepo.IsOffered(ctx, request.CounsellorID, day, startTime)
	if err != nil {
		return nil, err
	}
	if !offered {
		return nil, ErrSlotNotOffered
	}

	return s.reserve(ctx, userID, request.CounsellorID, scheduledAt, request.Note)
}

// reserve runs the check-then-insert as one unit: the advisory lock
// serializes it against concurrent bookings and acceptances for the same
// counsellor, so the accepted-slot probe and the insert cannot interleave.
func (s *BookingService) reserve(
	ctx context.Context,
	userID int64,
	counsellorID int64,
	scheduledAt time.Time,
	note *string,
) (*models.Session, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", counsellorID); err != nil {
		return nil, err
	}

	txSessionRepo := repository.NewSessionRepository(tx)

	taken, err := txSessionRepo.HasAcceptedAt(ctx, counsellorID, scheduledAt)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlotTaken
	}

	session, err := txSessionRepo.Create(ctx, repository.CreateSessionInput{
		UserID:       userID,
		CounsellorID: counsellorID,
		ScheduledAt:  scheduledAt,
		Note:         note,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return session, nil
}
