package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/models"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/repository"
)

var (
	ErrForbidden               = errors.New("forbidden")
	ErrNotPending              = errors.New("session is not pending")
	ErrRejectionMessageMissing = errors.New("rejection message is required")
	ErrNotCompleted            = errors.New("session is not completed")
	ErrAlreadySubmitted        = errors.New("feedback already submitted")
	ErrInvalidRating           = errors.New("rating must be between 1 and 5")
	ErrNotJoinable             = errors.New("session is not joinable")
)

// legalTransitions is the whole session state machine; rejected, completed
// and no_show are terminal. Counsellor decisions reject anything else as
// ErrNotPending, the sweep just skips it.
var legalTransitions = map[string][]string{
	models.SessionPending:  {models.SessionAccepted, models.SessionRejected},
	models.SessionAccepted: {models.SessionCompleted, models.SessionNoShow},
}

func canTransition(from, to string) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type notificationPublisher interface {
	Publish(ctx context.Context, event NotificationEvent) error
}

type sessionStore interface {
	GetByID(ctx context.Context, sessionID int64) (*models.Session, error)
	List(ctx context.Context, filter repository.SessionListFilter) ([]models.Session, error)
	RejectIfPending(ctx context.Context, sessionID int64, message string) (*models.Session, error)
	MarkJoined(ctx context.Context, sessionID int64) (bool, error)
	SetFeedbackIfUnset(ctx context.Context, sessionID int64, rating int, feedback string) (*models.Session, error)
}

type SessionService struct {
	db          *pgxpool.Pool
	sessionRepo sessionStore
	notifier    notificationPublisher
	cache       *SlotCache
	loc         *time.Location
	now         func() time.Time
}

func NewSessionService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	notifier *EventPublisher,
	cache *SlotCache,
	loc *time.Location,
) *SessionService {
	s := &SessionService{
		db:          db,
		sessionRepo: sessionRepo,
		cache:       cache,
		loc:         loc,
		now:         time.Now,
	}
	// A nil publisher stored straight into the interface field would dodge
	// the nil check in notify.
	if notifier != nil {
		s.notifier = notifier
	}
	return s
}

// Accept moves a pending session to accepted. The slot exclusivity guard is
// re-checked here under the counsellor's advisory lock rather than trusted
// from booking time, because several competing pending requests may exist
// for the same instant. The partial unique index on accepted sessions
// backstops the probe.
func (s *SessionService) Accept(
	ctx context.Context,
	counsellorID int64,
	sessionID int64,
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

	session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CounsellorID != counsellorID {
		return nil, ErrForbidden
	}
	if !canTransition(session.Status, models.SessionAccepted) {
		return nil, ErrNotPending
	}
	if !session.ScheduledAt.After(s.now().UTC()) {
		return nil, ErrSlotInPast
	}

	taken, err := txSessionRepo.HasAcceptedAt(ctx, counsellorID, session.ScheduledAt)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlotTaken
	}

	accepted, err := txSessionRepo.UpdateStatusIfCurrent(
		ctx, sessionID, models.SessionPending, models.SessionAccepted,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrSlotTaken
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotPending
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.cache.InvalidateDay(ctx, counsellorID, accepted.ScheduledAt.In(s.loc).Weekday().String())
	s.notify(ctx, NotificationEvent{
		Type:         EventSessionAccepted,
		SessionID:    accepted.ID,
		UserID:       accepted.UserID,
		CounsellorID: accepted.CounsellorID,
		ScheduledAt:  accepted.ScheduledAt,
	})
	return accepted, nil
}

// Reject declines a pending session with a mandatory message for the user.
func (s *SessionService) Reject(
	ctx context.Context,
	counsellorID int64,
	sessionID int64,
	message string,
) (*models.Session, error) {
	if message == "" {
		return nil, ErrRejectionMessageMissing
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CounsellorID != counsellorID {
		return nil, ErrForbidden
	}
	if !canTransition(session.Status, models.SessionRejected) {
		return nil, ErrNotPending
	}

	rejected, err := s.sessionRepo.RejectIfPending(ctx, sessionID, message)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotPending
		}
		return nil, err
	}

	s.notify(ctx, NotificationEvent{
		Type:         EventSessionRejected,
		SessionID:    rejected.ID,
		UserID:       rejected.UserID,
		CounsellorID: rejected.CounsellorID,
		ScheduledAt:  rejected.ScheduledAt,
		Message:      message,
	})
	return rejected, nil
}

// AttachFeedback records a rating and feedback once, on completed sessions
// only. The rating bound is 1-5 inclusive; zero is rejected.
func (s *SessionService) AttachFeedback(
	ctx context.Context,
	userID int64,
	sessionID int64,
	rating int,
	feedback string,
) (*models.Session, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrForbidden
	}
	if session.Status != models.SessionCompleted {
		return nil, ErrNotCompleted
	}
	if session.Rating != nil || session.Feedback != nil {
		return nil, ErrAlreadySubmitted
	}

	updated, err := s.sessionRepo.SetFeedbackIfUnset(ctx, sessionID, rating, feedback)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadySubmitted
		}
		return nil, err
	}
	return updated, nil
}

// MarkJoined raises the join signal for an accepted session when one of its
// participants connects. The sweeper later routes the session to completed
// or no_show based on it.
func (s *SessionService) MarkJoined(
	ctx context.Context,
	actorID int64,
	sessionID int64,
) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.UserID != actorID && session.CounsellorID != actorID {
		return ErrForbidden
	}

	joined, err := s.sessionRepo.MarkJoined(ctx, sessionID)
	if err != nil {
		return err
	}
	if !joined {
		return ErrNotJoinable
	}
	return nil
}

func (s *SessionService) GetSession(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !canAccessSession(role, actorID, session) {
		return nil, ErrForbidden
	}
	return session, nil
}

func (s *SessionService) ListSessions(
	ctx context.Context,
	actorID int64,
	role string,
	filter repository.SessionListFilter,
) ([]models.Session, error) {
	return s.sessionRepo.List(ctx, repository.SessionListFilter{
		ActorID:   actorID,
		Role:      role,
		Status:    filter.Status,
		Timeframe: filter.Timeframe,
	})
}

func (s *SessionService) notify(ctx context.Context, event NotificationEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		log.Printf("sessions: notification %s for session %d dropped: %v", event.Type, event.SessionID, err)
	}
}

func canAccessSession(role string, actorID int64, session *models.Session) bool {
	if role == models.RoleUser {
		return session.UserID == actorID
	}
	if role == models.RoleCounsellor {
		return session.CounsellorID == actorID
	}
	return false
}
