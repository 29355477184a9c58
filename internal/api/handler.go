package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/nidhogg/lovebook/internal/content"
	"github.com/nidhogg/lovebook/internal/gateway"
	"github.com/nidhogg/lovebook/internal/loveday"
	"go.uber.org/zap"
)

// photoField is the multipart field carrying an uploaded photo.
const photoField = "photo"

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

// Options configures the HTTP surface.
type Options struct {
	UploadDir      string         // directory served read-only
	UploadPrefix   string         // URL prefix of UploadDir, e.g. "/uploads"
	MaxUploadBytes int64          // request body cap for photo uploads
	RequestTimeout time.Duration  // per-request deadline, 0 disables
	Location       *time.Location // zone for dates given without one

	// Ping reports backend health for /health. Nil means always healthy.
	Ping func(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store    *content.Store
	counter  *loveday.Counter
	gw       *gateway.Gateway
	opts     Options
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler creates a new API handler. gw may be nil.
func NewHandler(store *content.Store, counter *loveday.Counter, gw *gateway.Gateway, opts Options, logger *zap.Logger) *Handler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.UploadPrefix == "" {
		opts.UploadPrefix = "/uploads"
	}
	opts.UploadPrefix = "/" + strings.Trim(opts.UploadPrefix, "/")
	return &Handler{
		store:    store,
		counter:  counter,
		gw:       gw,
		opts:     opts,
		validate: newValidator(),
		logger:   logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(h.logger))
	r.Use(middleware.Recoverer)
	if h.opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(h.opts.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", h.healthCheck)

	r.Get("/love-day", h.getLoveDay)
	r.Get("/love-day/count", h.countDays)

	r.Get("/memories", h.listMemories)
	r.Post("/memories", h.createMemory)
	r.Get("/memories/recent", h.recentMemories)

	r.Get("/events", h.listMilestones)
	r.Post("/events", h.createMilestone)

	r.Get("/notifications", h.listNotifications)
	r.Post("/notifications", h.createNotification)

	r.Get("/albums", h.listAlbums)
	r.Post("/albums", h.createAlbum)
	r.Get("/albums/{id}", h.getAlbum)
	r.Post("/albums/{id}/photos", h.attachPhoto)

	r.Get("/gateway/status", h.gatewayStatus)

	if h.opts.UploadDir != "" {
		files := http.StripPrefix(h.opts.UploadPrefix, http.FileServer(http.Dir(h.opts.UploadDir)))
		r.Get(h.opts.UploadPrefix+"/*", noDirListing(files).ServeHTTP)
	}

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if h.opts.Ping != nil {
		if err := h.opts.Ping(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) getLoveDay(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]time.Time{"loveDay": h.counter.Reference()})
}

func (h *Handler) countDays(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"daysTogether": h.counter.DaysTogether()})
}

func (h *Handler) recentMemories(w http.ResponseWriter, r *http.Request) {
	ms, err := h.store.RecentMemories(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (h *Handler) listMemories(w http.ResponseWriter, r *http.Request) {
	ms, err := h.store.ListMemories(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (h *Handler) createMemory(w http.ResponseWriter, r *http.Request) {
	var req memoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := parseOptionalInstant(req.Date, h.opts.Location)
	if err != nil {
		h.writeError(w, validationErr(err))
		return
	}
	m, err := h.store.CreateMemory(r.Context(), content.MemoryInput{Content: req.Content, Date: date})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) listMilestones(w http.ResponseWriter, r *http.Request) {
	ms, err := h.store.ListMilestones(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (h *Handler) createMilestone(w http.ResponseWriter, r *http.Request) {
	var req milestoneRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := parseOptionalInstant(req.Date, h.opts.Location)
	if err != nil {
		h.writeError(w, validationErr(err))
		return
	}
	m, err := h.store.CreateMilestone(r.Context(), content.MilestoneInput{
		Title:       req.Title,
		Date:        date,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	ns, err := h.store.ListNotifications(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

func (h *Handler) createNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if !h.decode(w, r, &req) {
		return
	}
	eventDate, err := parseOptionalInstant(req.EventDate, h.opts.Location)
	if err != nil {
		h.writeError(w, validationErr(err))
		return
	}
	n, err := h.store.CreateNotification(r.Context(), content.NotificationInput{
		Message:   req.Message,
		EventDate: eventDate,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *Handler) listAlbums(w http.ResponseWriter, r *http.Request) {
	as, err := h.store.ListAlbums(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, as)
}

func (h *Handler) createAlbum(w http.ResponseWriter, r *http.Request) {
	var req albumRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.store.CreateAlbum(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) getAlbum(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.GetAlbum(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) attachPhoto(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	}

	err := r.ParseMultipartForm(multipartMemory)
	var (
		file   multipart.File
		header *multipart.FileHeader
	)
	if err == nil {
		file, header, err = r.FormFile(photoField)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.writeError(w, validationErr(errors.New("photo exceeds upload size limit")))
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			h.writeError(w, validationErr(errors.New("multipart field \"photo\" is required")))
		default:
			h.writeError(w, validationErr(err))
		}
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	a, err := h.store.UploadPhoto(r.Context(), id, content.PhotoUpload{
		Field:    photoField,
		Filename: header.Filename,
		Body:     file,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.gw == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "gateway not initialized"})
		return
	}
	writeJSON(w, http.StatusOK, h.gw.StatusAll())
}

// decode reads a JSON body into v and validates it. It writes the error
// response itself and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	// An empty body reads as {}.
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, validationErr(err))
		return false
	}
	if err := h.validateStruct(v); err != nil {
		h.writeError(w, err)
		return false
	}
	return true
}

func validationErr(err error) error {
	return fmt.Errorf("%w: %w", content.ErrValidation, err)
}

// writeError maps domain errors onto HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.Is(err, content.ErrNotFound):
		status = http.StatusNotFound
		msg = "album not found"
	case errors.Is(err, content.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, content.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
		msg = "storage unavailable"
	case errors.Is(err, content.ErrUpload):
		msg = "photo upload failed"
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
