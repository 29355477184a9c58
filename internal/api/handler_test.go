package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nidhogg/lovebook/internal/blob"
	"github.com/nidhogg/lovebook/internal/content"
	"github.com/nidhogg/lovebook/internal/gateway"
	"github.com/nidhogg/lovebook/internal/loveday"
	"github.com/nidhogg/lovebook/internal/memstore"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 3, 13, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()

	dir := t.TempDir()
	blobs, err := blob.NewDiskStorage(dir, "/uploads", logger)
	if err != nil {
		t.Fatalf("disk storage: %v", err)
	}
	store := content.NewStore(memstore.Open(), blobs, logger)
	store.SetClock(func() time.Time { return testNow })

	ref, err := loveday.ParseReference(loveday.DefaultDate, "UTC")
	if err != nil {
		t.Fatal(err)
	}
	counter := loveday.NewCounter(ref).WithClock(func() time.Time { return testNow })

	gw := gateway.NewGateway(logger)
	gw.Register(gateway.NewLogAdapter(logger))

	h := NewHandler(store, counter, gw, Options{
		UploadDir:      dir,
		UploadPrefix:   "/uploads",
		MaxUploadBytes: 1 << 20,
	}, logger)

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, want, body)
	}
}

func uploadPhoto(t *testing.T, srv *httptest.Server, albumID, field, filename string, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()

	resp, err := http.Post(srv.URL+"/albums/"+albumID+"/photos", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return resp
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)
	resp := get(t, srv, "/health")
	expectStatus(t, resp, http.StatusOK)

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestHealthCheckReportsBackendFailure(t *testing.T) {
	h := NewHandler(nil, nil, nil, Options{
		Ping: func(context.Context) error { return errors.New("connection refused") },
	}, zap.NewNop())
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp := get(t, srv, "/health")
	expectStatus(t, resp, http.StatusServiceUnavailable)
	resp.Body.Close()
}

func TestLoveDay(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv, "/love-day/count")
	expectStatus(t, resp, http.StatusOK)
	var count map[string]int
	decodeBody(t, resp, &count)
	if count["daysTogether"] != 30 {
		t.Errorf("daysTogether = %d, want 30", count["daysTogether"])
	}

	resp = get(t, srv, "/love-day")
	expectStatus(t, resp, http.StatusOK)
	var day map[string]time.Time
	decodeBody(t, resp, &day)
	if want := time.Date(2025, 2, 11, 0, 0, 0, 0, time.UTC); !day["loveDay"].Equal(want) {
		t.Errorf("loveDay = %v, want %v", day["loveDay"], want)
	}
}

func TestMilestones(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/events", `{"title":"First date","date":"2025-02-11","description":"Coffee"}`)
	expectStatus(t, resp, http.StatusCreated)
	var created content.Milestone
	decodeBody(t, resp, &created)
	if created.ID == "" || created.Title != "First date" || created.Date == nil {
		t.Fatalf("unexpected milestone: %+v", created)
	}

	resp = get(t, srv, "/events")
	expectStatus(t, resp, http.StatusOK)
	var list []content.Milestone
	decodeBody(t, resp, &list)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestNotifications(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/notifications", `{"message":"Anniversary dinner","eventDate":"2026-02-11T19:00:00Z"}`)
	expectStatus(t, resp, http.StatusCreated)
	var n content.Notification
	decodeBody(t, resp, &n)
	if n.EventDate == nil || !n.EventDate.Equal(time.Date(2026, 2, 11, 19, 0, 0, 0, time.UTC)) {
		t.Errorf("eventDate = %v", n.EventDate)
	}

	resp = get(t, srv, "/notifications")
	expectStatus(t, resp, http.StatusOK)
	var list []content.Notification
	decodeBody(t, resp, &list)
	if len(list) != 1 || list[0].Message != "Anniversary dinner" {
		t.Errorf("list = %+v", list)
	}
}

func TestRecentMemories(t *testing.T) {
	srv := newTestServer(t)

	for _, body := range []string{
		`{"content":"D1","date":"2025-01-01"}`,
		`{"content":"D3","date":"2025-03-01"}`,
		`{"content":"D2","date":"2025-02-01"}`,
	} {
		expectStatus(t, postJSON(t, srv, "/memories", body), http.StatusCreated)
	}

	resp := postJSON(t, srv, "/memories", `{"content":"undated"}`)
	expectStatus(t, resp, http.StatusCreated)
	var undated content.Memory
	decodeBody(t, resp, &undated)
	if !undated.Date.Equal(testNow) {
		t.Errorf("default date = %v, want %v", undated.Date, testNow)
	}

	resp = get(t, srv, "/memories/recent")
	expectStatus(t, resp, http.StatusOK)
	var recent []content.Memory
	decodeBody(t, resp, &recent)
	if len(recent) != 2 || recent[0].Content != "undated" || recent[1].Content != "D3" {
		t.Errorf("recent = %+v", recent)
	}

	resp = get(t, srv, "/memories")
	expectStatus(t, resp, http.StatusOK)
	var all []content.Memory
	decodeBody(t, resp, &all)
	if len(all) != 4 {
		t.Errorf("got %d memories, want 4", len(all))
	}
}

func TestValidationErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"album without name", "/albums", `{}`},
		{"malformed json", "/albums", `{"name":`},
		{"bad milestone date", "/events", `{"title":"x","date":"yesterday"}`},
		{"bad event date", "/notifications", `{"message":"x","eventDate":"soon"}`},
		{"wrong type", "/memories", `{"content":42}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, srv, tc.path, tc.body)
			expectStatus(t, resp, http.StatusBadRequest)
			var body map[string]string
			decodeBody(t, resp, &body)
			if body["error"] == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestEmptyBodyReadsAsEmptyObject(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/events", "/memories", "/notifications"} {
		resp := postJSON(t, srv, path, "")
		expectStatus(t, resp, http.StatusCreated)
		var body map[string]any
		decodeBody(t, resp, &body)
		if body["id"] == "" || body["id"] == nil {
			t.Errorf("POST %s: missing id in %v", path, body)
		}
	}

	resp := postJSON(t, srv, "/albums", "")
	expectStatus(t, resp, http.StatusBadRequest)
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != "validation rejected: name is required" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestAlbumUploadFlow(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/albums", `{"name":"Summer"}`)
	expectStatus(t, resp, http.StatusCreated)
	var album content.Album
	decodeBody(t, resp, &album)
	if album.Photos == nil || len(album.Photos) != 0 {
		t.Fatalf("new album photos = %v, want empty", album.Photos)
	}

	data := []byte("\x89PNG fake image bytes")
	resp = uploadPhoto(t, srv, album.ID, "photo", "beach.PNG", data)
	expectStatus(t, resp, http.StatusOK)
	var updated content.Album
	decodeBody(t, resp, &updated)
	if len(updated.Photos) != 1 {
		t.Fatalf("photos = %v", updated.Photos)
	}
	ref := updated.Photos[0]
	if !strings.HasPrefix(ref, "/uploads/photo-") || !strings.HasSuffix(ref, ".png") {
		t.Errorf("unexpected photo ref %q", ref)
	}

	resp = get(t, srv, ref)
	expectStatus(t, resp, http.StatusOK)
	served, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !bytes.Equal(served, data) {
		t.Errorf("served %q, want %q", served, data)
	}

	resp = get(t, srv, "/albums/"+album.ID)
	expectStatus(t, resp, http.StatusOK)
	var fetched content.Album
	decodeBody(t, resp, &fetched)
	if len(fetched.Photos) != 1 || fetched.Photos[0] != ref {
		t.Errorf("fetched photos = %v", fetched.Photos)
	}

	resp = get(t, srv, "/albums")
	expectStatus(t, resp, http.StatusOK)
	var list []content.Album
	decodeBody(t, resp, &list)
	if len(list) != 1 {
		t.Errorf("got %d albums, want 1", len(list))
	}
}

func TestUploadUnknownAlbum(t *testing.T) {
	srv := newTestServer(t)

	resp := uploadPhoto(t, srv, "missing", "photo", "a.jpg", []byte("x"))
	expectStatus(t, resp, http.StatusNotFound)
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != "album not found" {
		t.Errorf("error = %q", body["error"])
	}

	expectStatus(t, get(t, srv, "/albums/missing"), http.StatusNotFound)
}

func TestUploadWrongField(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/albums", `{"name":"Winter"}`)
	var album content.Album
	decodeBody(t, resp, &album)

	resp = uploadPhoto(t, srv, album.ID, "image", "a.jpg", []byte("x"))
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestUploadTooLarge(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/albums", `{"name":"Huge"}`)
	var album content.Album
	decodeBody(t, resp, &album)

	resp = uploadPhoto(t, srv, album.ID, "photo", "big.jpg", bytes.Repeat([]byte("x"), 1<<20+4096))
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = get(t, srv, "/albums/"+album.ID)
	var fetched content.Album
	decodeBody(t, resp, &fetched)
	if len(fetched.Photos) != 0 {
		t.Errorf("photos = %v, want none", fetched.Photos)
	}
}

func TestUploadsHideDirectoryListing(t *testing.T) {
	srv := newTestServer(t)
	resp := get(t, srv, "/uploads/")
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestGatewayStatus(t *testing.T) {
	srv := newTestServer(t)
	resp := get(t, srv, "/gateway/status")
	expectStatus(t, resp, http.StatusOK)

	var statuses []gateway.AdapterStatus
	decodeBody(t, resp, &statuses)
	if len(statuses) != 1 || statuses[0].Platform != "log" || !statuses[0].Connected {
		t.Errorf("statuses = %+v", statuses)
	}
}
