package repository

import (
	"context"

	"github.com/sandesh-khatiwada/Sahara-sub000/internal/models"
)

type CounsellorProfileRepository struct {
	db DBTX
}

func NewCounsellorProfileRepository(db DBTX) *CounsellorProfileRepository {
	return &CounsellorProfileRepository{db: db}
}

func (r *CounsellorProfileRepository) CreateEmpty(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO counsellor_profiles (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

func (r *CounsellorProfileRepository) GetByUserID(ctx context.Context, userID int64) (*models.CounsellorProfile, error) {
	query := `
		SELECT id, user_id, hourly_rate, bio, created_at, updated_at
		FROM counsellor_profiles
		WHERE user_id = $1
	`
	var profile models.CounsellorProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.HourlyRate,
		&profile.Bio,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *CounsellorProfileRepository) UpdateRate(ctx context.Context, userID int64, hourlyRate float64) (*models.CounsellorProfile, error) {
	query := `
		UPDATE counsellor_profiles
		SET hourly_rate = $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING id, user_id, hourly_rate, bio, created_at, updated_at
	`
	var profile models.CounsellorProfile
	err := r.db.QueryRow(ctx, query, userID, hourlyRate).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.HourlyRate,
		&profile.Bio,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
