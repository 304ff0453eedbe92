// Package store persists extension records: users, tasks and uploaded
// media. Three implementations share the Store interface so tests run
// on memory and deployments pick postgres or sqlite.
package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("record not found")

type Store interface {
	UpsertUser(ctx context.Context, user UserRecord) (UserRecord, error)
	GetUser(ctx context.Context, id string) (UserRecord, bool, error)

	CreateTask(ctx context.Context, task TaskRecord) error
	GetTask(ctx context.Context, id string) (TaskRecord, bool, error)
	ListTasks(ctx context.Context, userID string) ([]TaskRecord, error)
	UpdateTask(ctx context.Context, task TaskRecord) error
	DeleteTask(ctx context.Context, id string) error

	CreateMedia(ctx context.Context, media MediaRecord) error
	ListMedia(ctx context.Context, userID, kind string) ([]MediaRecord, error)

	Close() error
}
