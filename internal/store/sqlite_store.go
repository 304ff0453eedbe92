package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore backs single-host deployments that want records to
// survive restarts without running postgres.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		external_id TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(provider, external_id)
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'open',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		completed_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id);

	CREATE TABLE IF NOT EXISTS media (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		task_id TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		filename TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		content_type TEXT NOT NULL DEFAULT '',
		upload_url TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_media_user_kind ON media(user_id, kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) UpsertUser(ctx context.Context, user UserRecord) (UserRecord, error) {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, provider, external_id, email, name, avatar_url, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)
		 ON CONFLICT (provider, external_id) DO UPDATE SET
		 email=excluded.email,
		 name=excluded.name,
		 avatar_url=excluded.avatar_url,
		 updated_at=excluded.updated_at`,
		user.ID, user.Provider, user.ExternalID, user.Email, user.Name, user.AvatarURL, user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return UserRecord{}, fmt.Errorf("upsert user: %w", err)
	}
	var id string
	var createdAt int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM users WHERE provider=? AND external_id=?`,
		user.Provider, user.ExternalID,
	).Scan(&id, &createdAt)
	if err != nil {
		return UserRecord{}, fmt.Errorf("read back user: %w", err)
	}
	user.ID = id
	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	return user, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (UserRecord, bool, error) {
	var u UserRecord
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, provider, external_id, email, name, avatar_url, created_at, updated_at
		 FROM users WHERE id=?`, id,
	).Scan(&u.ID, &u.Provider, &u.ExternalID, &u.Email, &u.Name, &u.AvatarURL, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, false, nil
	}
	if err != nil {
		return UserRecord{}, false, err
	}
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return u, true, nil
}

func (s *SQLiteStore) CreateTask(ctx context.Context, task TaskRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, title, description, status, created_at, updated_at, completed_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		task.ID, task.UserID, task.Title, task.Description, task.Status,
		task.CreatedAt.Unix(), task.UpdatedAt.Unix(), unixOrNil(task.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (TaskRecord, bool, error) {
	t, err := s.scanTaskRow(s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, description, status, created_at, updated_at, completed_at
		 FROM tasks WHERE id=?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return TaskRecord{}, false, nil
	}
	if err != nil {
		return TaskRecord{}, false, err
	}
	return t, true, nil
}

func (s *SQLiteStore) ListTasks(ctx context.Context, userID string) ([]TaskRecord, error) {
	query := `SELECT id, user_id, title, description, status, created_at, updated_at, completed_at
	 FROM tasks ORDER BY created_at DESC`
	args := []any{}
	if userID != "" {
		query = `SELECT id, user_id, title, description, status, created_at, updated_at, completed_at
		 FROM tasks WHERE user_id=? ORDER BY created_at DESC`
		args = append(args, userID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]TaskRecord, 0)
	for rows.Next() {
		t, err := s.scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, task TaskRecord) error {
	task.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title=?, description=?, status=?, updated_at=?, completed_at=? WHERE id=?`,
		task.Title, task.Description, task.Status, task.UpdatedAt.Unix(), unixOrNil(task.CompletedAt), task.ID,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", task.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) CreateMedia(ctx context.Context, media MediaRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO media (id, user_id, task_id, kind, filename, file_path, file_size, content_type, upload_url, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		media.ID, media.UserID, media.TaskID, media.Kind, media.Filename, media.FilePath, media.FileSize, media.ContentType, media.UploadURL, media.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create media: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListMedia(ctx context.Context, userID, kind string) ([]MediaRecord, error) {
	where := []string{"1=1"}
	args := make([]any, 0, 2)
	if userID != "" {
		where = append(where, "user_id=?")
		args = append(args, userID)
	}
	if kind != "" {
		where = append(where, "kind=?")
		args = append(args, kind)
	}
	query := fmt.Sprintf(
		`SELECT id, user_id, task_id, kind, filename, file_path, file_size, content_type, upload_url, created_at
		 FROM media WHERE %s ORDER BY created_at DESC`,
		strings.Join(where, " AND "),
	)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]MediaRecord, 0)
	for rows.Next() {
		var rec MediaRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.TaskID, &rec.Kind, &rec.Filename, &rec.FilePath, &rec.FileSize, &rec.ContentType, &rec.UploadURL, &createdAt); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanTaskRow(r rowScanner) (TaskRecord, error) {
	var t TaskRecord
	var createdAt, updatedAt int64
	var completedAt sql.NullInt64
	if err := r.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status, &createdAt, &updatedAt, &completedAt); err != nil {
		return TaskRecord{}, err
	}
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if completedAt.Valid {
		ct := time.Unix(completedAt.Int64, 0).UTC()
		t.CompletedAt = &ct
	}
	return t, nil
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
