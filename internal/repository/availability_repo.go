package repository

import (
	"context"

	"github.com/sandesh-khatiwada/Sahara-sub000/internal/models"
)

type AvailabilityEntryInput struct {
	DayOfWeek string
	Period    string
	StartTime string
}

type AvailabilityRepository struct {
	db DBTX
}

func NewAvailabilityRepository(db DBTX) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ReplaceForCounsellor swaps the counsellor's whole weekly template. Callers
// run it inside a transaction so readers never observe a half-replaced set.
func (r *AvailabilityRepository) ReplaceForCounsellor(
	ctx context.Context,
	counsellorID int64,
	entries []AvailabilityEntryInput,
) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM availability_entries WHERE counsellor_id = $1`,
		counsellorID,
	); err != nil {
		return err
	}

	query := `
		INSERT INTO availability_entries (counsellor_id, day_of_week, period, start_time)
		VALUES ($1, $2, $3, $4)
	`
	for _, entry := range entries {
		if _, err := r.db.Exec(ctx, query,
			counsellorID, entry.DayOfWeek, entry.Period, entry.StartTime,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *AvailabilityRepository) ListByCounsellor(
	ctx context.Context,
	counsellorID int64,
) ([]models.AvailabilityEntry, error) {
	query := `
		SELECT id, counsellor_id, day_of_week, period, start_time
		FROM availability_entries
		WHERE counsellor_id = $1
		ORDER BY day_of_week, start_time
	`
	return r.scanEntries(ctx, query, counsellorID)
}

func (r *AvailabilityRepository) ListForDay(
	ctx context.Context,
	counsellorID int64,
	dayOfWeek string,
) ([]models.AvailabilityEntry, error) {
	query := `
		SELECT id, counsellor_id, day_of_week, period, start_time
		FROM availability_entries
		WHERE counsellor_id = $1 AND day_of_week = $2
		ORDER BY start_time
	`
	return r.scanEntries(ctx, query, counsellorID, dayOfWeek)
}

func (r *AvailabilityRepository) IsOffered(
	ctx context.Context,
	counsellorID int64,
	dayOfWeek string,
	startTime string,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM availability_entries
			WHERE counsellor_id = $1 AND day_of_week = $2 AND start_time = $3
		)
	`
	var offered bool
	if err := r.db.QueryRow(ctx, query, counsellorID, dayOfWeek, startTime).Scan(&offered); err != nil {
		return false, err
	}
	return offered, nil
}

func (r *AvailabilityRepository) scanEntries(
	ctx context.Context,
	query string,
	args ...any,
) ([]models.AvailabilityEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.AvailabilityEntry, 0)
	for rows.Next() {
		var entry models.AvailabilityEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.CounsellorID,
			&entry.DayOfWeek,
			&entry.Period,
			&entry.StartTime,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
