package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the default backend. It keeps everything behind one
// mutex, which is plenty for a single-process extension backend.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]UserRecord
	tasks map[string]TaskRecord
	media map[string]MediaRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]UserRecord),
		tasks: make(map[string]TaskRecord),
		media: make(map[string]MediaRecord),
	}
}

func (m *MemoryStore) UpsertUser(_ context.Context, user UserRecord) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, existing := range m.users {
		if existing.Provider == user.Provider && existing.ExternalID == user.ExternalID {
			existing.Email = user.Email
			existing.Name = user.Name
			existing.AvatarURL = user.AvatarURL
			existing.UpdatedAt = now
			m.users[existing.ID] = existing
			return existing, nil
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	m.users[user.ID] = user
	return user, nil
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (UserRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) CreateTask(_ context.Context, task TaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	m.tasks[task.ID] = task
	return nil
}

func (m *MemoryStore) GetTask(_ context.Context, id string) (TaskRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok, nil
}

func (m *MemoryStore) ListTasks(_ context.Context, userID string) ([]TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TaskRecord, 0, len(m.tasks))
	for _, t := range m.tasks {
		if userID != "" && t.UserID != userID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdateTask(_ context.Context, task TaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; !ok {
		return fmt.Errorf("task %s: %w", task.ID, ErrNotFound)
	}
	m.tasks[task.ID] = task
	return nil
}

func (m *MemoryStore) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	delete(m.tasks, id)
	return nil
}

func (m *MemoryStore) CreateMedia(_ context.Context, media MediaRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.media[media.ID]; exists {
		return fmt.Errorf("media %s already exists", media.ID)
	}
	m.media[media.ID] = media
	return nil
}

func (m *MemoryStore) ListMedia(_ context.Context, userID, kind string) ([]MediaRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MediaRecord, 0, len(m.media))
	for _, rec := range m.media {
		if userID != "" && rec.UserID != userID {
			continue
		}
		if kind != "" && rec.Kind != kind {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
