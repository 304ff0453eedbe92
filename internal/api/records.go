package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/akhatua2/designx/internal/observability"
	"github.com/akhatua2/designx/internal/store"
	"github.com/akhatua2/designx/pkg/extapi"
)

// maxUploadBytes bounds screenshot and recording uploads (50 MiB).
const maxUploadBytes = 50 << 20

func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	user, ok, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req extapi.CreateTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.UserID) == "" {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}
		now := time.Now().UTC()
		task := store.TaskRecord{
			ID:          uuid.New().String(),
			UserID:      req.UserID,
			Title:       req.Title,
			Description: req.Description,
			Status:      "open",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.CreateTask(r.Context(), task); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, taskResponse(task))
	case http.MethodGet:
		tasks, err := s.store.ListTasks(r.Context(), r.URL.Query().Get("user_id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]extapi.TaskRecord, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, taskResponse(t))
		}
		writeJSON(w, http.StatusOK, out)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		task, ok, err := s.store.GetTask(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeJSON(w, http.StatusOK, taskResponse(task))
	case http.MethodPatch:
		var req extapi.UpdateTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		task, ok, err := s.store.GetTask(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		if req.Title != nil {
			task.Title = *req.Title
		}
		if req.Description != nil {
			task.Description = *req.Description
		}
		if req.Status != nil {
			task.Status = *req.Status
			if task.Status == "done" && task.CompletedAt == nil {
				now := time.Now().UTC()
				task.CompletedAt = &now
			}
		}
		task.UpdatedAt = time.Now().UTC()
		if err := s.store.UpdateTask(r.Context(), task); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, taskResponse(task))
	case http.MethodDelete:
		if err := s.store.DeleteTask(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "task deleted"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleScreenshots(w http.ResponseWriter, r *http.Request) {
	s.handleMedia(w, r, store.MediaScreenshot)
}

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	s.handleMedia(w, r, store.MediaRecording)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request, kind string) {
	switch r.Method {
	case http.MethodPost:
		s.handleMediaUpload(w, r, kind)
	case http.MethodGet:
		records, err := s.store.ListMedia(r.Context(), r.URL.Query().Get("user_id"), kind)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]extapi.MediaRecord, 0, len(records))
		for _, rec := range records {
			out = append(out, mediaResponse(rec))
		}
		writeJSON(w, http.StatusOK, extapi.MediaListResponse{Items: out})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleMediaUpload(w http.ResponseWriter, r *http.Request, kind string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer func() { _ = file.Close() }()

	userID := strings.TrimSpace(r.FormValue("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	taskID := strings.TrimSpace(r.FormValue("task_id"))

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	id := uuid.New().String()
	filename := filepath.Base(header.Filename)
	objectName := fmt.Sprintf("%ss/%s/%s-%s", kind, userID, id, filename)

	path, url, err := s.media.Put(r.Context(), objectName, file, header.Size, contentType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("store upload: %v", err))
		return
	}

	rec := store.MediaRecord{
		ID:          id,
		UserID:      userID,
		TaskID:      taskID,
		Kind:        kind,
		Filename:    filename,
		FilePath:    path,
		FileSize:    header.Size,
		ContentType: contentType,
		UploadURL:   url,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateMedia(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	observability.Default.IncCounter("media_uploads_total", map[string]string{"kind": kind}, 1)
	log.Printf("media_id=%s: stored %s %s (%d bytes) for user %s", id, kind, filename, header.Size, userID)

	writeJSON(w, http.StatusOK, extapi.UploadResponse{
		Success:  true,
		URL:      url,
		Filename: filename,
		Size:     header.Size,
		Message:  kind + " uploaded",
	})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func taskResponse(t store.TaskRecord) extapi.TaskRecord {
	return extapi.TaskRecord{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		CompletedAt: t.CompletedAt,
	}
}

func mediaResponse(m store.MediaRecord) extapi.MediaRecord {
	return extapi.MediaRecord{
		ID:          m.ID,
		UserID:      m.UserID,
		TaskID:      m.TaskID,
		Filename:    m.Filename,
		FilePath:    m.FilePath,
		FileSize:    m.FileSize,
		ContentType: m.ContentType,
		UploadURL:   m.UploadURL,
		CreatedAt:   m.CreatedAt,
	}
}
