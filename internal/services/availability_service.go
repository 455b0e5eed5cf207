package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/models"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/repository"
)

var ErrDuplicateSlot = errors.New("duplicate slot in template")

type availabilityStore interface {
	ListByCounsellor(ctx context.Context, counsellorID int64) ([]models.AvailabilityEntry, error)
	ListForDay(ctx context.Context, counsellorID int64, dayOfWeek string) ([]models.AvailabilityEntry, error)
	IsOffered(ctx context.Context, counsellorID int64, dayOfWeek string, startTime string) (bool, error)
}

type acceptedTimesReader interface {
	AcceptedTimesBetween(ctx context.Context, counsellorID int64, from, to time.Time) ([]time.Time, error)
}

type AvailabilityService struct {
	db               *pgxpool.Pool
	availabilityRepo availabilityStore
	sessionRepo      acceptedTimesReader
	cache            *SlotCache
	loc              *time.Location
	now              func() time.Time
}

func NewAvailabilityService(
	db *pgxpool.Pool,
	availabilityRepo *repository.AvailabilityRepository,
	sessionRepo *repository.SessionRepository,
	cache *SlotCache,
	loc *time.Location,
) *AvailabilityService {
	return &AvailabilityService{
		db:               db,
		availabilityRepo: availabilityRepo,
		sessionRepo:      sessionRepo,
		cache:            cache,
		loc:              loc,
		now:              time.Now,
	}
}

// AvailabilityTemplateEntry is one group of offered hours as submitted by a
// counsellor: a day, an informational period, and the start times under it.
type AvailabilityTemplateEntry struct {
	DayOfWeek string   `json:"day_of_week"`
	Period    string   `json:"period"`
	Times     []string `json:"times"`
}

// normalizeTemplate validates a submitted weekly template against the closed
// day/period enums and flattens it into per-slot rows. A (day, startTime)
// pair may appear at most once across all periods.
func normalizeTemplate(entries []AvailabilityTemplateEntry) ([]repository.AvailabilityEntryInput, error) {
	seen := make(map[string]struct{})
	rows := make([]repository.AvailabilityEntryInput, 0)

	for _, entry := range entries {
		day, _, err := parseDayOfWeek(entry.DayOfWeek)
		if err != nil {
			return nil, err
		}
		period, err := parsePeriod(entry.Period)
		if err != nil {
			return nil, err
		}
		for _, rawTime := range entry.Times {
			startTime, _, err := parseStartTime(rawTime)
			if err != nil {
				return nil, err
			}
			key := day + "|" + startTime
			if _, dup := seen[key]; dup {
				return nil, ErrDuplicateSlot
			}
			seen[key] = struct{}{}
			rows = append(rows, repository.AvailabilityEntryInput{
				DayOfWeek: day,
				Period:    period,
				StartTime: startTime,
			})
		}
	}
	return rows, nil
}

// SetAvailability replaces the counsellor's entire weekly template. Already
// accepted sessions are not touched; only future booking requests see the
// new template.
func (s *AvailabilityService) SetAvailability(
	ctx context.Context,
	counsellorID int64,
	entries []AvailabilityTemplateEntry,
) error {
	rows, err := normalizeTemplate(entries)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txAvailabilityRepo := repository.NewAvailabilityRepository(tx)
	if err := txAvailabilityRepo.ReplaceForCounsellor(ctx, counsellorID, rows); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.cache.InvalidateAll(ctx, counsellorID)
	return nil
}

func (s *AvailabilityService) ListTemplate(
	ctx context.Context,
	counsellorID int64,
) ([]models.AvailabilityEntry, error) {
	return s.availabilityRepo.ListByCounsellor(ctx, counsellorID)
}

func (s *AvailabilityService) IsOffered(
	ctx context.Context,
	counsellorID int64,
	dayOfWeek string,
	startTime string,
) (bool, error) {
	day, _, err := parseDayOfWeek(dayOfWeek)
	if err != nil {
		return false, err
	}
	start, _, err := parseStartTime(startTime)
	if err != nil {
		return false, err
	}
	return s.availabilityRepo.IsOffered(ctx, counsellorID, day, start)
}

// FreeSlots lists the offered start times for the next concrete occurrence
// of the given day, minus slots an accepted session already occupies. The
// result is for display; booking re-checks everything at commit time.
func (s *AvailabilityService) FreeSlots(
	ctx context.Context,
	counsellorID int64,
	dayOfWeek string,
) ([]string, error) {
	day, weekday, err := parseDayOfWeek(dayOfWeek)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cache.Get(ctx, counsellorID, day); ok {
		return cached, nil
	}

	entries, err := s.availabilityRepo.ListForDay(ctx, counsellorID, day)
	if err != nil {
		return nil, err
	}

	windowStart, windowEnd := occurrenceWindow(s.now(), s.loc, weekday)
	acceptedTimes, err := s.sessionRepo.AcceptedTimesBetween(ctx, counsellorID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	taken := make(map[string]struct{}, len(acceptedTimes))
	for _, at := range acceptedTimes {
		taken[at.In(s.loc).Format("15:04")] = struct{}{}
	}

	free := make([]string, 0, len(entries))
	for _, entry := range entries {
		if _, booked := taken[entry.StartTime]; booked {
			continue
		}
		free = append(free, entry.StartTime)
	}

	s.cache.Set(ctx, counsellorID, day, free)
	return free, nil
}
