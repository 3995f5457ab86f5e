package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // driver: sqlite

	"github.com/terra-clan/pathway-engine/internal/models"
)

// SQLiteRepository implements Repository on a single SQLite file. It is
// meant for local development and tests; timestamps are stored as unix
// nanoseconds.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens dsn with the modernc driver and ensures the
// schema exists.
func NewSQLiteRepository(ctx context.Context, dsn string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// One connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS profiles (
  user_id TEXT PRIMARY KEY,
  display_name TEXT NOT NULL DEFAULT '',
  grade TEXT NOT NULL DEFAULT '',
  specialty_id TEXT NOT NULL DEFAULT '',
  tasks TEXT NOT NULL DEFAULT '[]',
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS activities (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  date TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL DEFAULT '',
  points REAL NOT NULL DEFAULT 0,
  comments TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activities_user ON activities(user_id);

CREATE TABLE IF NOT EXISTS tasks (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  doc TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id);

CREATE TABLE IF NOT EXISTS events (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  doc TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_user ON events(user_id);

CREATE TABLE IF NOT EXISTS api_clients (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  api_key TEXT NOT NULL UNIQUE,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at INTEGER NOT NULL,
  last_used_at INTEGER,
  permissions TEXT NOT NULL DEFAULT '[]',
  metadata TEXT NOT NULL DEFAULT '{}'
);
`

// Ping checks database connectivity
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// --- Activities ---

func (r *SQLiteRepository) CreateActivity(ctx context.Context, a *models.Activity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activities (`+activityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Description, a.Date, a.Category, a.Type,
		a.Points.Float(), a.Comments, unixNano(a.CreatedAt), unixNano(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetActivity(ctx context.Context, userID, id string) (*models.Activity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE user_id = ? AND id = ?`, userID, id)

	a, err := scanSQLiteActivity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) UpdateActivity(ctx context.Context, a *models.Activity) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE activities
		SET description = ?, date = ?, category = ?, type = ?, points = ?, comments = ?, updated_at = ?
		WHERE user_id = ? AND id = ?`,
		a.Description, a.Date, a.Category, a.Type, a.Points.Float(), a.Comments,
		unixNano(a.UpdatedAt), a.UserID, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	return expectRow(result, "activity "+a.ID)
}

func (r *SQLiteRepository) DeleteActivity(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	return expectRow(result, "activity "+id)
}

func (r *SQLiteRepository) GetActivities(ctx context.Context, userID string) ([]*models.Activity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := make([]*models.Activity, 0)
	for rows.Next() {
		a, err := scanSQLiteActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteActivity(row rowScanner) (*models.Activity, error) {
	var a models.Activity
	var points float64
	var created, updated int64

	if err := row.Scan(&a.ID, &a.UserID, &a.Description, &a.Date, &a.Category, &a.Type,
		&points, &a.Comments, &created, &updated); err != nil {
		return nil, err
	}

	a.Points = models.Points(points)
	a.CreatedAt = fromUnixNano(created)
	a.UpdatedAt = fromUnixNano(updated)
	return &a, nil
}

// --- Tasks and events ---

func (r *SQLiteRepository) CreateDeadline(ctx context.Context, c models.Collection, d *models.StoredDeadline) error {
	table, err := deadlineTable(c)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(d.Doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO `+table+` (id, user_id, doc, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.UserID, string(doc), unixNano(d.CreatedAt), unixNano(d.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create %s document: %w", c, err)
	}
	return nil
}

func (r *SQLiteRepository) GetDeadline(ctx context.Context, c models.Collection, userID, id string) (*models.StoredDeadline, error) {
	table, err := deadlineTable(c)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, doc, created_at, updated_at FROM `+table+` WHERE user_id = ? AND id = ?`, userID, id)

	d, err := scanSQLiteDeadline(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s document: %w", c, err)
	}
	return d, nil
}

func (r *SQLiteRepository) UpdateDeadline(ctx context.Context, c models.Collection, d *models.StoredDeadline) error {
	table, err := deadlineTable(c)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(d.Doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE `+table+` SET doc = ?, updated_at = ? WHERE user_id = ? AND id = ?`,
		string(doc), unixNano(d.UpdatedAt), d.UserID, d.ID)
	if err != nil {
		return fmt.Errorf("failed to update %s document: %w", c, err)
	}
	return expectRow(result, string(c)+" "+d.ID)
}

func (r *SQLiteRepository) DeleteDeadline(ctx context.Context, c models.Collection, userID, id string) error {
	table, err := deadlineTable(c)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s document: %w", c, err)
	}
	return expectRow(result, string(c)+" "+id)
}

func (r *SQLiteRepository) ListDeadlines(ctx context.Context, c models.Collection, userID string) ([]*models.StoredDeadline, error) {
	table, err := deadlineTable(c)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, doc, created_at, updated_at FROM `+table+` WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c, err)
	}
	defer rows.Close()

	docs := make([]*models.StoredDeadline, 0)
	for rows.Next() {
		d, err := scanSQLiteDeadline(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", c, err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func scanSQLiteDeadline(row rowScanner) (*models.StoredDeadline, error) {
	var d models.StoredDeadline
	var doc string
	var created, updated int64

	if err := row.Scan(&d.ID, &d.UserID, &doc, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(doc), &d.Doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	d.CreatedAt = fromUnixNano(created)
	d.UpdatedAt = fromUnixNano(updated)
	return &d, nil
}

// --- Profiles ---

func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	var tasks string
	var created, updated int64

	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, display_name, grade, specialty_id, tasks, created_at, updated_at
		FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.DisplayName, &p.Grade, &p.SpecialtyID, &tasks, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if err := json.Unmarshal([]byte(tasks), &p.LegacyTasks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal legacy tasks: %w", err)
	}
	p.CreatedAt = fromUnixNano(created)
	p.UpdatedAt = fromUnixNano(updated)
	return &p, nil
}

func (r *SQLiteRepository) UpsertProfile(ctx context.Context, p *models.Profile) error {
	tasks := p.LegacyTasks
	if tasks == nil {
		tasks = []models.DeadlineDoc{}
	}
	tasksJSON, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to marshal legacy tasks: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, display_name, grade, specialty_id, tasks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET display_name = excluded.display_name,
		    grade = excluded.grade,
		    specialty_id = excluded.specialty_id,
		    tasks = excluded.tasks,
		    updated_at = excluded.updated_at`,
		p.UserID, p.DisplayName, p.Grade, p.SpecialtyID, string(tasksJSON),
		unixNano(p.CreatedAt), unixNano(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// --- API Clients ---

func (r *SQLiteRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	var client models.ApiClient
	var created int64
	var lastUsed sql.NullInt64
	var permissions, metadata string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, api_key, is_active, created_at, last_used_at, permissions, metadata
		FROM api_clients WHERE api_key = ?`, apiKey,
	).Scan(&client.ID, &client.Name, &client.ApiKey, &client.IsActive, &created, &lastUsed, &permissions, &metadata)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	client.CreatedAt = fromUnixNano(created)
	if lastUsed.Valid {
		t := fromUnixNano(lastUsed.Int64)
		client.LastUsedAt = &t
	}

	if err := decodeClientJSON(&client, []byte(permissions), []byte(metadata)); err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *SQLiteRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE api_clients SET last_used_at = ? WHERE api_key = ?`, unixNano(time.Now()), apiKey)
	if err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}
	return nil
}

// CreateClient registers an API client. Postgres deployments seed clients
// through migrations; SQLite has no migration step.
func (r *SQLiteRepository) CreateClient(ctx context.Context, c *models.ApiClient) error {
	permissions, err := json.Marshal(c.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}
	metadata := c.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO api_clients (name, api_key, is_active, created_at, permissions, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, c.ApiKey, c.IsActive, unixNano(c.CreatedAt), string(permissions), string(metadataJSON))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("api client %s already exists", c.Name)
		}
		return fmt.Errorf("failed to create api client: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read api client id: %w", err)
	}
	c.ID = int(id)
	return nil
}

// --- Helpers ---

func expectRow(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
