package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/models"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/repository"
)

type sweeperStore interface {
	ListDueAccepted(ctx context.Context, now time.Time) ([]models.Session, error)
	CloseIfDue(ctx context.Context, sessionID int64, nextStatus string, now time.Time) (*models.Session, error)
}

// Sweeper closes out accepted sessions whose scheduled instant has passed:
// completed when the join signal was raised, no_show otherwise. Every
// transition is a single conditional update, so overlapping sweeps (or a
// second process) race to exactly one winner per session.
type Sweeper struct {
	sessionRepo sweeperStore
	interval    time.Duration
	now         func() time.Time
}

func NewSweeper(sessionRepo *repository.SessionRepository, interval time.Duration) *Sweeper {
	return &Sweeper{
		sessionRepo: sessionRepo,
		interval:    interval,
		now:         time.Now,
	}
}

// Run executes a sweep every interval until the context is cancelled.
// Sweeps run serially in this goroutine, so a slow sweep delays the next
// tick instead of overlapping it.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				log.Printf("sweeper: sweep failed: %v", err)
			}
		}
	}
}

// SweepOnce processes every due accepted session independently. A session a
// concurrent sweep already moved is a no-op here, and one session's failure
// never aborts the batch; it is retried on the next tick.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()

	due, err := s.sessionRepo.ListDueAccepted(ctx, now)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, session := range due {
		nextStatus := models.SessionNoShow
		if session.Joined {
			nextStatus = models.SessionCompleted
		}
		if !canTransition(session.Status, nextStatus) {
			continue
		}

		if _, err := s.sessionRepo.CloseIfDue(ctx, session.ID, nextStatus, now); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			log.Printf("sweeper: closing session %d failed: %v", session.ID, err)
			continue
		}
		closed++
	}
	return closed, nil
}
