package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/models"
)

type stubSweeperStore struct {
	due     []models.Session
	listErr error
	// closeErr, keyed by session id, forces CloseIfDue failures.
	closeErr map[int64]error
	closed   map[int64]string
}

func (s *stubSweeperStore) ListDueAccepted(_ context.Context, _ time.Time) ([]models.Session, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.due, nil
}

func (s *stubSweeperStore) CloseIfDue(_ context.Context, sessionID int64, nextStatus string, _ time.Time) (*models.Session, error) {
	if err := s.closeErr[sessionID]; err != nil {
		return nil, err
	}
	if s.closed == nil {
		s.closed = make(map[int64]string)
	}
	s.closed[sessionID] = nextStatus
	return &models.Session{ID: sessionID, Status: nextStatus}, nil
}

func TestSweepOnceRoutesByJoinSignal(t *testing.T) {
	store := &stubSweeperStore{
		due: []models.Session{
			{ID: 1, Status: models.SessionAccepted, Joined: true},
			{ID: 2, Status: models.SessionAccepted, Joined: false},
		},
	}
	sweeper := &Sweeper{sessionRepo: store, now: time.Now}

	closed, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if closed != 2 {
		t.Fatalf("expected 2 closed, got %d", closed)
	}
	if store.closed[1] != models.SessionCompleted {
		t.Fatalf("expected joined session completed, got %q", store.closed[1])
	}
	if store.closed[2] != models.SessionNoShow {
		t.Fatalf("expected unjoined session no_show, got %q", store.closed[2])
	}
}

func TestSweepOnceIsolatesFailures(t *testing.T) {
	store := &stubSweeperStore{
		due: []models.Session{
			{ID: 1, Status: models.SessionAccepted},
			{ID: 2, Status: models.SessionAccepted},
			{ID: 3, Status: models.SessionAccepted},
		},
		closeErr: map[int64]error{
			1: pgx.ErrNoRows, // another sweep got there first
			2: errors.New("connection reset"),
		},
	}
	sweeper := &Sweeper{sessionRepo: store, now: time.Now}

	closed, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected only session 3 closed, got %d", closed)
	}
	if store.closed[3] != models.SessionNoShow {
		t.Fatalf("expected session 3 no_show, got %q", store.closed[3])
	}
}

func TestSweepOnceSkipsNonAcceptedRows(t *testing.T) {
	// ListDueAccepted should only return accepted rows, but the transition
	// guard holds regardless of what the query hands back.
	store := &stubSweeperStore{
		due: []models.Session{
			{ID: 1, Status: models.SessionCompleted, Joined: true},
		},
	}
	sweeper := &Sweeper{sessionRepo: store, now: time.Now}

	closed, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if closed != 0 {
		t.Fatalf("expected nothing closed, got %d", closed)
	}
}

func TestSweepOncePropagatesListFailure(t *testing.T) {
	store := &stubSweeperStore{listErr: errors.New("db down")}
	sweeper := &Sweeper{sessionRepo: store, now: time.Now}

	if _, err := sweeper.SweepOnce(context.Background()); err == nil {
		t.Fatal("expected error when listing fails")
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	store := &stubSweeperStore{}
	sweeper := &Sweeper{sessionRepo: store, interval: time.Millisecond, now: time.Now}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
