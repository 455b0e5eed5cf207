package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/models"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/repository"
)

type stubSessionStore struct {
	session   *models.Session
	getErr    error
	rejected  *models.Session
	rejectErr error
	joined    bool
	joinErr   error
	updated   *models.Session
	setErr    error
	listed    []models.Session
	filter    repository.SessionListFilter
}

func (s *stubSessionStore) GetByID(_ context.Context, _ int64) (*models.Session, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.session, nil
}

func (s *stubSessionStore) List(_ context.Context, filter repository.SessionListFilter) ([]models.Session, error) {
	s.filter = filter
	return s.listed, nil
}

func (s *stubSessionStore) RejectIfPending(_ context.Context, _ int64, _ string) (*models.Session, error) {
	if s.rejectErr != nil {
		return nil, s.rejectErr
	}
	return s.rejected, nil
}

func (s *stubSessionStore) MarkJoined(_ context.Context, _ int64) (bool, error) {
	return s.joined, s.joinErr
}

func (s *stubSessionStore) SetFeedbackIfUnset(_ context.Context, _ int64, _ int, _ string) (*models.Session, error) {
	if s.setErr != nil {
		return nil, s.setErr
	}
	return s.updated, nil
}

type recordingPublisher struct {
	events []NotificationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event NotificationEvent) error {
	p.events = append(p.events, event)
	return p.err
}

func TestCanTransitionCoversStateMachine(t *testing.T) {
	allowed := map[[2]string]bool{
		{models.SessionPending, models.SessionAccepted}:   true,
		{models.SessionPending, models.SessionRejected}:   true,
		{models.SessionAccepted, models.SessionCompleted}: true,
		{models.SessionAccepted, models.SessionNoShow}:    true,
	}

	statuses := []string{
		models.SessionPending,
		models.SessionAccepted,
		models.SessionRejected,
		models.SessionCompleted,
		models.SessionNoShow,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]string{from, to}]
			if got := canTransition(from, to); got != want {
				t.Fatalf("canTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func pendingSession() *models.Session {
	return &models.Session{
		ID:           11,
		UserID:       1,
		CounsellorID: 7,
		Status:       models.SessionPending,
		ScheduledAt:  time.Date(2026, 9, 4, 9, 0, 0, 0, time.UTC),
	}
}

func TestRejectRequiresMessage(t *testing.T) {
	service := &SessionService{sessionRepo: &stubSessionStore{session: pendingSession()}}

	if _, err := service.Reject(context.Background(), 7, 11, ""); !errors.Is(err, ErrRejectionMessageMissing) {
		t.Fatalf("expected ErrRejectionMessageMissing, got %v", err)
	}
}

func TestRejectEnforcesOwnershipAndState(t *testing.T) {
	service := &SessionService{sessionRepo: &stubSessionStore{session: pendingSession()}}
	if _, err := service.Reject(context.Background(), 8, 11, "unavailable"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for other counsellor, got %v", err)
	}

	accepted := pendingSession()
	accepted.Status = models.SessionAccepted
	service = &SessionService{sessionRepo: &stubSessionStore{session: accepted}}
	if _, err := service.Reject(context.Background(), 7, 11, "unavailable"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending for accepted session, got %v", err)
	}
}

func TestRejectPublishesNotification(t *testing.T) {
	rejected := pendingSession()
	rejected.Status = models.SessionRejected
	publisher := &recordingPublisher{}
	service := &SessionService{
		sessionRepo: &stubSessionStore{session: pendingSession(), rejected: rejected},
		notifier:    publisher,
	}

	out, err := service.Reject(context.Background(), 7, 11, "out of office")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Status != models.SessionRejected {
		t.Fatalf("expected rejected session, got %s", out.Status)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.Type != EventSessionRejected || event.SessionID != 11 || event.Message != "out of office" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestRejectLosingRaceMapsToNotPending(t *testing.T) {
	// The guarded update found no pending row: someone else moved it first.
	service := &SessionService{
		sessionRepo: &stubSessionStore{session: pendingSession(), rejectErr: pgx.ErrNoRows},
	}
	if _, err := service.Reject(context.Background(), 7, 11, "unavailable"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
}

func TestRejectSurvivesPublisherFailure(t *testing.T) {
	rejected := pendingSession()
	rejected.Status = models.SessionRejected
	service := &SessionService{
		sessionRepo: &stubSessionStore{session: pendingSession(), rejected: rejected},
		notifier:    &recordingPublisher{err: errors.New("broker down")},
	}

	if _, err := service.Reject(context.Background(), 7, 11, "unavailable"); err != nil {
		t.Fatalf("expected no error despite publisher failure, got %v", err)
	}
}

func TestAttachFeedbackValidatesRating(t *testing.T) {
	service := &SessionService{sessionRepo: &stubSessionStore{}}
	for _, rating := range []int{0, -1, 6} {
		if _, err := service.AttachFeedback(context.Background(), 1, 11, rating, "fine"); !errors.Is(err, ErrInvalidRating) {
			t.Fatalf("expected ErrInvalidRating for %d, got %v", rating, err)
		}
	}
}

func TestAttachFeedbackGuards(t *testing.T) {
	completed := pendingSession()
	completed.Status = models.SessionCompleted

	service := &SessionService{sessionRepo: &stubSessionStore{session: completed}}
	if _, err := service.AttachFeedback(context.Background(), 2, 11, 4, "fine"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for other user, got %v", err)
	}

	service = &SessionService{sessionRepo: &stubSessionStore{session: pendingSession()}}
	if _, err := service.AttachFeedback(context.Background(), 1, 11, 4, "fine"); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("expected ErrNotCompleted, got %v", err)
	}

	rated := pendingSession()
	rated.Status = models.SessionCompleted
	rating := 5
	rated.Rating = &rating
	service = &SessionService{sessionRepo: &stubSessionStore{session: rated}}
	if _, err := service.AttachFeedback(context.Background(), 1, 11, 4, "fine"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestAttachFeedbackLosingRaceMapsToAlreadySubmitted(t *testing.T) {
	completed := pendingSession()
	completed.Status = models.SessionCompleted
	service := &SessionService{
		sessionRepo: &stubSessionStore{session: completed, setErr: pgx.ErrNoRows},
	}
	if _, err := service.AttachFeedback(context.Background(), 1, 11, 4, "fine"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestMarkJoined(t *testing.T) {
	service := &SessionService{sessionRepo: &stubSessionStore{session: pendingSession(), joined: true}}
	if err := service.MarkJoined(context.Background(), 1, 11); err != nil {
		t.Fatalf("expected no error for participant, got %v", err)
	}
	if err := service.MarkJoined(context.Background(), 7, 11); err != nil {
		t.Fatalf("expected no error for counsellor, got %v", err)
	}

	if err := service.MarkJoined(context.Background(), 99, 11); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stranger, got %v", err)
	}

	service = &SessionService{sessionRepo: &stubSessionStore{session: pendingSession(), joined: false}}
	if err := service.MarkJoined(context.Background(), 1, 11); !errors.Is(err, ErrNotJoinable) {
		t.Fatalf("expected ErrNotJoinable when the guarded update matches nothing, got %v", err)
	}
}

func TestGetSessionEnforcesVisibility(t *testing.T) {
	store := &stubSessionStore{session: pendingSession()}
	service := &SessionService{sessionRepo: store}

	if _, err := service.GetSession(context.Background(), 1, models.RoleUser, 11); err != nil {
		t.Fatalf("expected owner access, got %v", err)
	}
	if _, err := service.GetSession(context.Background(), 7, models.RoleCounsellor, 11); err != nil {
		t.Fatalf("expected counsellor access, got %v", err)
	}
	if _, err := service.GetSession(context.Background(), 7, models.RoleUser, 11); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for cross-role peek, got %v", err)
	}
	if _, err := service.GetSession(context.Background(), 1, models.RoleCounsellor, 11); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for wrong side, got %v", err)
	}
}

func TestListSessionsPinsActorToFilter(t *testing.T) {
	store := &stubSessionStore{}
	service := &SessionService{sessionRepo: store}

	// The caller-supplied actor fields are overwritten with the
	// authenticated identity.
	_, err := service.ListSessions(context.Background(), 7, models.RoleCounsellor, repository.SessionListFilter{
		ActorID:   99,
		Role:      models.RoleUser,
		Status:    models.SessionPending,
		Timeframe: "upcoming",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if store.filter.ActorID != 7 || store.filter.Role != models.RoleCounsellor {
		t.Fatalf("expected actor pinned to 7/counsellor, got %+v", store.filter)
	}
	if store.filter.Status != models.SessionPending || store.filter.Timeframe != "upcoming" {
		t.Fatalf("expected status and timeframe preserved, got %+v", store.filter)
	}
}
