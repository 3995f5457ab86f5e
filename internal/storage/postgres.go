package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/pathway-engine/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	// Set pool configuration
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25 // default
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5 // default
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Activities ---

const activityColumns = `id, user_id, description, date, category, type, points, comments, created_at, updated_at`

// CreateActivity creates a new activity record
func (r *PostgresRepository) CreateActivity(ctx context.Context, a *models.Activity) error {
	query := `
		INSERT INTO activities (` + activityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.UserID,
		a.Description,
		a.Date,
		nullString(a.Category),
		nullString(a.Type),
		a.Points.Float(),
		nullString(a.Comments),
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}

	return nil
}

// GetActivity retrieves one of a user's activities by ID
func (r *PostgresRepository) GetActivity(ctx context.Context, userID, id string) (*models.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id = $1 AND id = $2`

	a, err := scanActivity(r.pool.QueryRow(ctx, query, userID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	return a, nil
}

// UpdateActivity replaces the mutable fields of an activity
func (r *PostgresRepository) UpdateActivity(ctx context.Context, a *models.Activity) error {
	query := `
		UPDATE activities
		SET description = $3, date = $4, category = $5, type = $6, points = $7, comments = $8, updated_at = $9
		WHERE user_id = $1 AND id = $2
	`

	result, err := r.pool.Exec(ctx, query,
		a.UserID,
		a.ID,
		a.Description,
		a.Date,
		nullString(a.Category),
		nullString(a.Type),
		a.Points.Float(),
		nullString(a.Comments),
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("activity %s: %w", a.ID, ErrNotFound)
	}

	return nil
}

// DeleteActivity deletes one of a user's activities
func (r *PostgresRepository) DeleteActivity(ctx context.Context, userID, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM activities WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("activity %s: %w", id, ErrNotFound)
	}

	return nil
}

// GetActivities returns a user's activities, oldest first
func (r *PostgresRepository) GetActivities(ctx context.Context, userID string) ([]*models.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id = $1 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := make([]*models.Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activities: %w", err)
	}

	return activities, nil
}

func scanActivity(row pgx.Row) (*models.Activity, error) {
	var a models.Activity
	var category, kind, comments sql.NullString
	var points float64

	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Description,
		&a.Date,
		&category,
		&kind,
		&points,
		&comments,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}

	a.Category = category.String
	a.Type = kind.String
	a.Comments = comments.String
	a.Points = models.Points(points)

	return &a, nil
}

// --- Tasks and events ---

// CreateDeadline stores a task or event document
func (r *PostgresRepository) CreateDeadline(ctx context.Context, c models.Collection, d *models.StoredDeadline) error {
	table, err := deadlineTable(c)
	if err != nil {
		return err
	}

	docJSON, err := json.Marshal(d.Doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, table)

	if _, err := r.pool.Exec(ctx, query, d.ID, d.UserID, docJSON, d.CreatedAt, d.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create %s document: %w", c, err)
	}

	return nil
}

// GetDeadline retrieves one task or event document
func (r *PostgresRepository) GetDeadline(ctx context.Context, c models.Collection, userID, id string) (*models.StoredDeadline, error) {
	table, err := deadlineTable(c)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, user_id, doc, created_at, updated_at FROM %s WHERE user_id = $1 AND id = $2`, table)

	d, err := scanDeadline(r.pool.QueryRow(ctx, query, userID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s document: %w", c, err)
	}

	return d, nil
}

// UpdateDeadline replaces a task or event document
func (r *PostgresRepository) UpdateDeadline(ctx context.Context, c models.Collection, d *models.StoredDeadline) error {
	table, err := deadlineTable(c)
	if err != nil {
		return err
	}

	docJSON, err := json.Marshal(d.Doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	query := fmt.Sprintf(`UPDATE %s SET doc = $3, updated_at = $4 WHERE user_id = $1 AND id = $2`, table)

	result, err := r.pool.Exec(ctx, query, d.UserID, d.ID, docJSON, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update %s document: %w", c, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", c, d.ID, ErrNotFound)
	}

	return nil
}

// DeleteDeadline deletes a task or event document
func (r *PostgresRepository) DeleteDeadline(ctx context.Context, c models.Collection, userID, id string) error {
	table, err := deadlineTable(c)
	if err != nil {
		return err
	}

	result, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND id = $2`, table), userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s document: %w", c, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", c, id, ErrNotFound)
	}

	return nil
}

// ListDeadlines returns a user's task or event documents, oldest first
func (r *PostgresRepository) ListDeadlines(ctx context.Context, c models.Collection, userID string) ([]*models.StoredDeadline, error) {
	table, err := deadlineTable(c)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, user_id, doc, created_at, updated_at FROM %s WHERE user_id = $1 ORDER BY created_at, id`, table)

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c, err)
	}
	defer rows.Close()

	docs := make([]*models.StoredDeadline, 0)
	for rows.Next() {
		d, err := scanDeadline(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", c, err)
		}
		docs = append(docs, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", c, err)
	}

	return docs, nil
}

func scanDeadline(row pgx.Row) (*models.StoredDeadline, error) {
	var d models.StoredDeadline
	var docJSON []byte

	if err := row.Scan(&d.ID, &d.UserID, &docJSON, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(docJSON, &d.Doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	return &d, nil
}

// --- Profiles ---

// GetProfile retrieves a user's profile document
func (r *PostgresRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	query := `
		SELECT user_id, display_name, grade, specialty_id, tasks, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`

	var p models.Profile
	var displayName, grade, specialtyID sql.NullString
	var tasksJSON []byte

	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&displayName,
		&grade,
		&specialtyID,
		&tasksJSON,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	p.DisplayName = displayName.String
	p.Grade = grade.String
	p.SpecialtyID = specialtyID.String

	if tasksJSON != nil {
		if err := json.Unmarshal(tasksJSON, &p.LegacyTasks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal legacy tasks: %w", err)
		}
	}

	return &p, nil
}

// UpsertProfile creates or replaces a profile document
func (r *PostgresRepository) UpsertProfile(ctx context.Context, p *models.Profile) error {
	tasks := p.LegacyTasks
	if tasks == nil {
		tasks = []models.DeadlineDoc{}
	}
	tasksJSON, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to marshal legacy tasks: %w", err)
	}

	query := `
		INSERT INTO profiles (user_id, display_name, grade, specialty_id, tasks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    grade = EXCLUDED.grade,
		    specialty_id = EXCLUDED.specialty_id,
		    tasks = EXCLUDED.tasks,
		    updated_at = EXCLUDED.updated_at
	`

	_, err = r.pool.Exec(ctx, query,
		p.UserID,
		nullString(p.DisplayName),
		nullString(p.Grade),
		nullString(p.SpecialtyID),
		tasksJSON,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}

// --- API Clients ---

// GetClientByApiKey retrieves an API client by its key
func (r *PostgresRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	query := `
		SELECT id, name, api_key, is_active, created_at, last_used_at, permissions, metadata
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.ApiClient
	var lastUsedAt sql.NullTime
	var permissionsJSON, metadataJSON []byte

	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.ApiKey,
		&client.IsActive,
		&client.CreatedAt,
		&lastUsedAt,
		&permissionsJSON,
		&metadataJSON,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	if lastUsedAt.Valid {
		client.LastUsedAt = &lastUsedAt.Time
	}

	if err := decodeClientJSON(&client, permissionsJSON, metadataJSON); err != nil {
		return nil, err
	}

	return &client, nil
}

// UpdateClientLastUsed updates the last_used_at timestamp for a client
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	query := `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`

	_, err := r.pool.Exec(ctx, query, apiKey)
	if err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}

	return nil
}

// --- Helpers ---

func decodeClientJSON(client *models.ApiClient, permissionsJSON, metadataJSON []byte) error {
	// Parse permissions JSON array
	if permissionsJSON != nil {
		if err := json.Unmarshal(permissionsJSON, &client.Permissions); err != nil {
			return fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	// Parse metadata JSON object
	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &client.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
