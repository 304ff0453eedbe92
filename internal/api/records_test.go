package api

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"

	"github.com/akhatua2/designx/pkg/extapi"
)

func TestTaskCRUD(t *testing.T) {
	h := newTestServer(t, "/bin/true").Handler()

	var created extapi.TaskRecord
	mustReqJSON(t, h, http.MethodPost, "/api/tasks", extapi.CreateTaskRequest{
		UserID:      "u1",
		Title:       "capture landing page",
		Description: "hero section only",
	}, &created)
	if created.ID == "" || created.Status != "open" {
		t.Fatalf("unexpected created task %+v", created)
	}

	var fetched extapi.TaskRecord
	mustReqJSON(t, h, http.MethodGet, "/api/tasks/"+created.ID, nil, &fetched)
	if fetched.Title != "capture landing page" {
		t.Fatalf("unexpected task %+v", fetched)
	}

	status := "done"
	var updated extapi.TaskRecord
	mustReqJSON(t, h, http.MethodPatch, "/api/tasks/"+created.ID, extapi.UpdateTaskRequest{Status: &status}, &updated)
	if updated.Status != "done" || updated.CompletedAt == nil {
		t.Fatalf("expected completion timestamp, got %+v", updated)
	}

	var list []extapi.TaskRecord
	mustReqJSON(t, h, http.MethodGet, "/api/tasks?user_id=u1", nil, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 task, got %d", len(list))
	}

	mustReqJSON(t, h, http.MethodDelete, "/api/tasks/"+created.ID, nil, nil)
	if w := reqJSON(t, h, http.MethodGet, "/api/tasks/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestTaskValidationAndNotFound(t *testing.T) {
	h := newTestServer(t, "/bin/true").Handler()

	if w := reqJSON(t, h, http.MethodPost, "/api/tasks", extapi.CreateTaskRequest{Title: "no user"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := reqJSON(t, h, http.MethodPost, "/api/tasks", extapi.CreateTaskRequest{UserID: "u1"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	title := "x"
	if w := reqJSON(t, h, http.MethodPatch, "/api/tasks/unknown", extapi.UpdateTaskRequest{Title: &title}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := reqJSON(t, h, http.MethodDelete, "/api/tasks/unknown", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func uploadFile(t *testing.T, h http.Handler, path, field, filename, contentType string, body []byte, form map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range form {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	hdr.Set("Content-Type", contentType)
	fw, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(body); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestScreenshotUploadAndList(t *testing.T) {
	srv := newTestServer(t, "/bin/true")
	h := srv.Handler()

	w := uploadFile(t, h, "/api/screenshots", "file", "shot.png", "image/png",
		[]byte("fake png bytes"), map[string]string{"user_id": "u1", "task_id": "t1"})
	if w.Code != http.StatusOK {
		t.Fatalf("upload failed: status=%d body=%s", w.Code, w.Body.String())
	}
	var resp extapi.UploadResponse
	decodeBody(t, w, &resp)
	if !resp.Success || resp.Filename != "shot.png" || resp.Size != int64(len("fake png bytes")) {
		t.Fatalf("unexpected upload response %+v", resp)
	}

	var list extapi.MediaListResponse
	mustReqJSON(t, h, http.MethodGet, "/api/screenshots?user_id=u1", nil, &list)
	if len(list.Items) != 1 {
		t.Fatalf("expected 1 screenshot, got %d", len(list.Items))
	}
	rec := list.Items[0]
	if rec.TaskID != "t1" || rec.UploadURL == "" || rec.ContentType != "image/png" {
		t.Fatalf("unexpected media record %+v", rec)
	}
	data, err := os.ReadFile(rec.FilePath)
	if err != nil {
		t.Fatalf("stored file unreadable: %v", err)
	}
	if string(data) != "fake png bytes" {
		t.Fatalf("stored bytes mismatch: %q", data)
	}

	// Recordings are a separate collection.
	var recordings extapi.MediaListResponse
	mustReqJSON(t, h, http.MethodGet, "/api/recordings?user_id=u1", nil, &recordings)
	if len(recordings.Items) != 0 {
		t.Fatalf("screenshot leaked into recordings: %+v", recordings.Items)
	}
}

func TestRecordingUploadRequiresUserAndFile(t *testing.T) {
	h := newTestServer(t, "/bin/true").Handler()

	w := uploadFile(t, h, "/api/recordings", "file", "clip.webm", "video/webm",
		[]byte("webm bytes"), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without user_id, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/recordings", bytes.NewReader([]byte("not multipart")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad form, got %d", rec.Code)
	}
}
