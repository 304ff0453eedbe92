package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreUpsertUserDeduplicates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.UpsertUser(ctx, UserRecord{ID: "u1", Provider: "github", ExternalID: "42", Name: "Old Name"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := s.UpsertUser(ctx, UserRecord{ID: "u2", Provider: "github", ExternalID: "42", Name: "New Name"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same user id, got %s and %s", first.ID, second.ID)
	}
	if second.Name != "New Name" {
		t.Fatalf("expected profile update, got %q", second.Name)
	}
}

func TestMemoryStoreTaskLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	task := TaskRecord{ID: "t1", UserID: "u1", Title: "capture hero section", Status: "open", CreatedAt: now, UpdatedAt: now}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("create: %v", err)
	}

	task.Status = "done"
	if err := s.UpdateTask(ctx, task); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok, err := s.GetTask(ctx, "t1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Status != "done" {
		t.Fatalf("expected done, got %s", got.Status)
	}

	if err := s.DeleteTask(ctx, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteTask(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreListTasksOrderedAndFiltered(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	for i, id := range []string{"t1", "t2", "t3"} {
		user := "u1"
		if id == "t3" {
			user = "u2"
		}
		task := TaskRecord{ID: id, UserID: user, Title: id, Status: "open", CreatedAt: base.Add(time.Duration(i) * time.Second), UpdatedAt: base}
		if err := s.CreateTask(ctx, task); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	all, err := s.ListTasks(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "t3" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	mine, err := s.ListTasks(ctx, "u1")
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 tasks for u1, got %d", len(mine))
	}
}

func TestMemoryStoreMediaFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	records := []MediaRecord{
		{ID: "m1", UserID: "u1", Kind: MediaScreenshot, Filename: "a.png", CreatedAt: now},
		{ID: "m2", UserID: "u1", Kind: MediaRecording, Filename: "b.webm", CreatedAt: now.Add(time.Second)},
		{ID: "m3", UserID: "u2", Kind: MediaScreenshot, Filename: "c.png", CreatedAt: now.Add(2 * time.Second)},
	}
	for _, rec := range records {
		if err := s.CreateMedia(ctx, rec); err != nil {
			t.Fatalf("create %s: %v", rec.ID, err)
		}
	}

	shots, err := s.ListMedia(ctx, "", MediaScreenshot)
	if err != nil {
		t.Fatalf("list screenshots: %v", err)
	}
	if len(shots) != 2 || shots[0].ID != "m3" {
		t.Fatalf("unexpected screenshots %+v", shots)
	}

	u1Recordings, err := s.ListMedia(ctx, "u1", MediaRecording)
	if err != nil {
		t.Fatalf("list recordings: %v", err)
	}
	if len(u1Recordings) != 1 || u1Recordings[0].ID != "m2" {
		t.Fatalf("unexpected recordings %+v", u1Recordings)
	}
}
