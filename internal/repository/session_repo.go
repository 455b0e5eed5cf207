package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/models"
)

const sessionColumns = `id, user_id, counsellor_id, scheduled_at, status, note,
	rejection_message, joined, payment_status, transaction_id, rating, feedback,
	created_at, updated_at`

type CreateSessionInput struct {
	UserID       int64
	CounsellorID int64
	ScheduledAt  time.Time
	Note         *string
}

type SessionListFilter struct {
	ActorID   int64
	Role      string
	Status    string
	Timeframe string
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.CounsellorID,
		&session.ScheduledAt,
		&session.Status,
		&session.Note,
		&session.RejectionMessage,
		&session.Joined,
		&session.PaymentStatus,
		&session.TransactionID,
		&session.Rating,
		&session.Feedback,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) Create(
	ctx context.Context,
	input CreateSessionInput,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		INSERT INTO sessions (user_id, counsellor_id, scheduled_at, status, note, payment_status)
		VALUES ($1, $2, $3, 'pending', $4, 'pending')
		RETURNING %s
	`, sessionColumns)

	return scanSession(r.db.QueryRow(
		ctx,
		query,
		input.UserID,
		input.CounsellorID,
		input.ScheduledAt,
		input.Note,
	))
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE id = $1
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) GetByIDForUpdate(
	ctx context.Context,
	sessionID int64,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE id = $1
		FOR UPDATE
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) List(
	ctx context.Context,
	filter SessionListFilter,
) ([]models.Session, error) {
	actorColumn := "user_id"
	if filter.Role == models.RoleCounsellor {
		actorColumn = "counsellor_id"
	}

	args := []any{filter.ActorID}
	whereParts := []string{fmt.Sprintf("%s = $1", actorColumn)}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	switch strings.TrimSpace(filter.Timeframe) {
	case "upcoming":
		whereParts = append(whereParts, "scheduled_at > NOW()")
	case "past":
		whereParts = append(whereParts, "scheduled_at <= NOW()")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE %s
		ORDER BY scheduled_at ASC, id ASC
	`, sessionColumns, strings.Join(whereParts, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// HasAcceptedAt reports whether an accepted session already occupies the
// exact (counsellor, instant) slot.
func (r *SessionRepository) HasAcceptedAt(
	ctx context.Context,
	counsellorID int64,
	scheduledAt time.Time,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM sessions
			WHERE counsellor_id = $1
			  AND scheduled_at = $2
			  AND status = 'accepted'
		)
	`
	var taken bool
	if err := r.db.QueryRow(ctx, query, counsellorID, scheduledAt).Scan(&taken); err != nil {
		return false, err
	}
	return taken, nil
}

// AcceptedTimesBetween returns the accepted scheduled instants for a
// counsellor within [from, to). Used to subtract booked slots from the
// offered template when listing free slots.
func (r *SessionRepository) AcceptedTimesBetween(
	ctx context.Context,
	counsellorID int64,
	from time.Time,
	to time.Time,
) ([]time.Time, error) {
	query := `
		SELECT scheduled_at
		FROM sessions
		WHERE counsellor_id = $1
		  AND status = 'accepted'
		  AND scheduled_at >= $2
		  AND scheduled_at < $3
	`
	rows, err := r.db.Query(ctx, query, counsellorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	times := make([]time.Time, 0)
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, err
		}
		times = append(times, at)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return times, nil
}

// UpdateStatusIfCurrent flips the status only if the row still holds the
// expected current status. pgx.ErrNoRows means the guard did not match and
// someone else already moved the session.
func (r *SessionRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	sessionID int64,
	currentStatus string,
	nextStatus string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, currentStatus, nextStatus))
}

func (r *SessionRepository) RejectIfPending(
	ctx context.Context,
	sessionID int64,
	message string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = 'rejected', rejection_message = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, message))
}

// ListDueAccepted returns accepted sessions whose scheduled instant has
// passed; the lifecycle sweep closes each one out.
func (r *SessionRepository) ListDueAccepted(
	ctx context.Context,
	now time.Time,
) ([]models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE status = 'accepted' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC, id ASC
	`, sessionColumns)

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CloseIfDue finalizes an accepted, past-due session. The status guard makes
// overlapping sweeps race to exactly one winner per session.
func (r *SessionRepository) CloseIfDue(
	ctx context.Context,
	sessionID int64,
	nextStatus string,
	now time.Time,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'accepted' AND scheduled_at <= $3
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, nextStatus, now))
}

// MarkJoined raises the join signal on an accepted session, but only before
// its scheduled instant elapses; a late connection must not rescue a session
// the sweep would close as no_show.
func (r *SessionRepository) MarkJoined(ctx context.Context, sessionID int64) (bool, error) {
	query := `
		UPDATE sessions
		SET joined = TRUE, updated_at = NOW()
		WHERE id = $1 AND status = 'accepted' AND scheduled_at > NOW()
	`
	tag, err := r.db.Exec(ctx, query, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *SessionRepository) SetFeedbackIfUnset(
	ctx context.Context,
	sessionID int64,
	rating int,
	feedback string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET rating = $2, feedback = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'completed' AND rating IS NULL AND feedback IS NULL
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, rating, feedback))
}

// ApplyPaymentOutcome records a payment callback's outcome. Only completed is
// sticky: once paid, later callbacks match no row and surface as
// pgx.ErrNoRows. A failed payment stays open so a retried transaction can
// still complete it.
func (r *SessionRepository) ApplyPaymentOutcome(
	ctx context.Context,
	sessionID int64,
	paymentStatus string,
	transactionID *string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET payment_status = $2,
		    transaction_id = COALESCE($3, transaction_id),
		    updated_at = NOW()
		WHERE id = $1 AND payment_status <> 'completed'
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, paymentStatus, transactionID))
}
