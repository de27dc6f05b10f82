// Package mealrepo persists meal analysis records.
package mealrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/meal-insight/internal/domain/meal"
)

// PostgresRepository implements meal.AnalysisRepository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const analysisColumns = `
	id, user_id, detected_dishes, food_items, calories, portions,
	nutrients, deficient_nutrients, excessive_nutrients, improvements,
	image_url, created_at`

// Create inserts a new analysis row.
func (r *PostgresRepository) Create(ctx context.Context, analysis meal.Analysis) error {
	nutrients, err := json.Marshal(analysis.Nutrients)
	if err != nil {
		return fmt.Errorf("encode nutrients: %w", err)
	}
	portions, err := json.Marshal(analysis.Portions)
	if err != nil {
		return fmt.Errorf("encode portions: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO meal_analyses (
			id, user_id, detected_dishes, food_items, calories, portions,
			nutrients, deficient_nutrients, excessive_nutrients, improvements,
			image_url, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, analysis.ID, analysis.UserID, analysis.DetectedDishes, analysis.FoodItems,
		analysis.Calories, portions, nutrients, analysis.DeficientNutrients,
		analysis.ExcessiveNutrients, analysis.Improvements, analysis.ImageURL,
		analysis.CreatedAt)
	return err
}

// Get fetches one analysis scoped to its owner.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID, userID int64) (meal.Analysis, bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+analysisColumns+`
		FROM meal_analyses
		WHERE id = $1 AND user_id = $2
		LIMIT 1
	`, id, userID)
	if err != nil {
		return meal.Analysis{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return meal.Analysis{}, false, rows.Err()
	}
	analysis, err := scanAnalysis(rows)
	if err != nil {
		return meal.Analysis{}, false, err
	}
	return analysis, true, rows.Err()
}

// ListByDateRange returns a user's analyses created within [from, to].
func (r *PostgresRepository) ListByDateRange(ctx context.Context, userID int64, from, to time.Time) ([]meal.Analysis, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+analysisColumns+`
		FROM meal_analyses
		WHERE user_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at ASC
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAnalyses(rows)
}

// ListRecent returns the newest analyses first.
func (r *PostgresRepository) ListRecent(ctx context.Context, userID int64, limit int) ([]meal.Analysis, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+analysisColumns+`
		FROM meal_analyses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAnalyses(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

type analysisRows interface {
	rowScanner
	Next() bool
	Err() error
}

func collectAnalyses(rows analysisRows) ([]meal.Analysis, error) {
	var out []meal.Analysis
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, analysis)
	}
	return out, rows.Err()
}

func scanAnalysis(row rowScanner) (meal.Analysis, error) {
	var (
		analysis  meal.Analysis
		nutrients []byte
		portions  []byte
	)
	if err := row.Scan(
		&analysis.ID, &analysis.UserID, &analysis.DetectedDishes,
		&analysis.FoodItems, &analysis.Calories, &portions, &nutrients,
		&analysis.DeficientNutrients, &analysis.ExcessiveNutrients,
		&analysis.Improvements, &analysis.ImageURL, &analysis.CreatedAt,
	); err != nil {
		return meal.Analysis{}, err
	}
	if err := json.Unmarshal(nutrients, &analysis.Nutrients); err != nil {
		return meal.Analysis{}, fmt.Errorf("decode nutrients: %w", err)
	}
	if err := json.Unmarshal(portions, &analysis.Portions); err != nil {
		return meal.Analysis{}, fmt.Errorf("decode portions: %w", err)
	}
	analysis.Nutrients = analysis.Nutrients.Normalize()
	return analysis, nil
}

var _ meal.AnalysisRepository = (*PostgresRepository)(nil)
