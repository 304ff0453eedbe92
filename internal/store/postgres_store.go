package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/akhatua2/designx/db/migrations"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if !hasSQLDriver("pgx") {
		return nil, errors.New("pgx SQL driver is not linked; import github.com/jackc/pgx/v5/stdlib")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	store := &PostgresStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func hasSQLDriver(name string) bool {
	for _, d := range sql.Drivers() {
		if d == name {
			return true
		}
	}
	return false
}

func (p *PostgresStore) ensureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL)`); err != nil {
		return err
	}
	files, err := listMigrationFiles(migrations.Files)
	if err != nil {
		return err
	}
	for _, file := range files {
		applied, err := p.isMigrationApplied(ctx, file)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := p.applyMigration(ctx, file); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresStore) isMigrationApplied(ctx context.Context, version string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, version).Scan(&exists)
	return exists, err
}

func (p *PostgresStore) applyMigration(ctx context.Context, file string) error {
	sqlBytes, err := migrations.Files.ReadFile(file)
	if err != nil {
		return err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
		return fmt.Errorf("apply migration %s: %w", file, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`, file, time.Now().UTC()); err != nil {
		return fmt.Errorf("record migration %s: %w", file, err)
	}
	return tx.Commit()
}

func listMigrationFiles(migFS fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(migFS, ".")
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

func (p *PostgresStore) UpsertUser(ctx context.Context, user UserRecord) (UserRecord, error) {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users (id, provider, external_id, email, name, avatar_url, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (provider, external_id) DO UPDATE SET
		 email=EXCLUDED.email,
		 name=EXCLUDED.name,
		 avatar_url=EXCLUDED.avatar_url,
		 updated_at=EXCLUDED.updated_at
		 RETURNING id, created_at`,
		user.ID, user.Provider, user.ExternalID, user.Email, user.Name, user.AvatarURL, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return UserRecord{}, err
	}
	return user, nil
}

func (p *PostgresStore) GetUser(ctx context.Context, id string) (UserRecord, bool, error) {
	var u UserRecord
	err := p.db.QueryRowContext(ctx,
		`SELECT id, provider, external_id, email, name, avatar_url, created_at, updated_at
		 FROM users WHERE id=$1`, id,
	).Scan(&u.ID, &u.Provider, &u.ExternalID, &u.Email, &u.Name, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, false, nil
	}
	if err != nil {
		return UserRecord{}, false, err
	}
	return u, true, nil
}

func (p *PostgresStore) CreateTask(ctx context.Context, task TaskRecord) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, title, description, status, created_at, updated_at, completed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		task.ID, task.UserID, task.Title, task.Description, task.Status, task.CreatedAt, task.UpdatedAt, nullTime(task.CompletedAt),
	)
	return err
}

func (p *PostgresStore) GetTask(ctx context.Context, id string) (TaskRecord, bool, error) {
	var t TaskRecord
	var completedAt sql.NullTime
	err := p.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, description, status, created_at, updated_at, completed_at
		 FROM tasks WHERE id=$1`, id,
	).Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status, &t.CreatedAt, &t.UpdatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return TaskRecord{}, false, nil
	}
	if err != nil {
		return TaskRecord{}, false, err
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return t, true, nil
}

func (p *PostgresStore) ListTasks(ctx context.Context, userID string) ([]TaskRecord, error) {
	query := `SELECT id, user_id, title, description, status, created_at, updated_at, completed_at
	 FROM tasks ORDER BY created_at DESC`
	args := []any{}
	if userID != "" {
		query = `SELECT id, user_id, title, description, status, created_at, updated_at, completed_at
		 FROM tasks WHERE user_id=$1 ORDER BY created_at DESC`
		args = append(args, userID)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]TaskRecord, 0)
	for rows.Next() {
		var t TaskRecord
		var completedAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status, &t.CreatedAt, &t.UpdatedAt, &completedAt); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			t.CompletedAt = &completedAt.Time
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateTask(ctx context.Context, task TaskRecord) error {
	task.UpdatedAt = time.Now().UTC()
	res, err := p.db.ExecContext(ctx,
		`UPDATE tasks SET title=$2, description=$3, status=$4, updated_at=$5, completed_at=$6 WHERE id=$1`,
		task.ID, task.Title, task.Description, task.Status, task.UpdatedAt, nullTime(task.CompletedAt),
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

func (p *PostgresStore) DeleteTask(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, id)
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

func (p *PostgresStore) CreateMedia(ctx context.Context, media MediaRecord) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO media (id, user_id, task_id, kind, filename, file_path, file_size, content_type, upload_url, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		media.ID, media.UserID, media.TaskID, media.Kind, media.Filename, media.FilePath, media.FileSize, media.ContentType, media.UploadURL, media.CreatedAt,
	)
	return err
}

func (p *PostgresStore) ListMedia(ctx context.Context, userID, kind string) ([]MediaRecord, error) {
	where := []string{"1=1"}
	args := make([]any, 0, 2)
	argi := 1
	if userID != "" {
		where = append(where, fmt.Sprintf("user_id=$%d", argi))
		args = append(args, userID)
		argi++
	}
	if kind != "" {
		where = append(where, fmt.Sprintf("kind=$%d", argi))
		args = append(args, kind)
		argi++
	}
	query := fmt.Sprintf(
		`SELECT id, user_id, task_id, kind, filename, file_path, file_size, content_type, upload_url, created_at
		 FROM media WHERE %s ORDER BY created_at DESC`,
		strings.Join(where, " AND "),
	)
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]MediaRecord, 0)
	for rows.Next() {
		var rec MediaRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.TaskID, &rec.Kind, &rec.Filename, &rec.FilePath, &rec.FileSize, &rec.ContentType, &rec.UploadURL, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
