package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campushub/statesync/internal/auth"
	"campushub/statesync/internal/broadcast"
	"campushub/statesync/internal/config"
	"campushub/statesync/internal/ingest"
	"campushub/statesync/internal/state"
	"campushub/statesync/internal/syncer"
)

type Server struct {
	cfg         config.Config
	coordinator *syncer.Coordinator
	bus         *broadcast.Bus
	extractor   ingest.Extractor
	stylizer    ingest.Stylizer
}

func NewServer(cfg config.Config, coordinator *syncer.Coordinator, bus *broadcast.Bus, extractor ingest.Extractor, stylizer ingest.Stylizer) *Server {
	return &Server{
		cfg:         cfg,
		coordinator: coordinator,
		bus:         bus,
		extractor:   extractor,
		stylizer:    stylizer,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/state", s.handleGetState)
	r.Get("/state/watch", s.handleWatchState)
	r.Post("/complaints", s.handleCreateComplaint)

	r.With(s.adminMiddleware).Post("/admin/ingest", s.handleIngest)
	r.With(s.adminMiddleware).Post("/admin/map", s.handleUploadMap)
	r.With(s.adminMiddleware).Post("/admin/records/{category}", s.handleAddRecords)
	r.With(s.adminMiddleware).Delete("/admin/records/{category}/{id}", s.handleDeleteRecord)
	r.With(s.adminMiddleware).Post("/admin/complaints/{id}/toggle", s.handleToggleComplaint)
	r.With(s.adminMiddleware).Post("/admin/reset", s.handleReset)

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		if claims.UserType != "admin" {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Models

type saveStatus struct {
	Synced bool   `json:"synced"`
	Reason string `json:"reason,omitempty"`
}

type ingestRequest struct {
	Category string `json:"category"`
	MimeType string `json:"mimeType"`
	Content  string `json:"content"`
}

type ingestResponse struct {
	Added int `json:"added"`
	saveStatus
}

type createComplaintRequest struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

type uploadMapRequest struct {
	Image string `json:"image"`
}

type uploadMapResponse struct {
	Stylized bool `json:"stylized"`
	saveStatus
}

// Handlers

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.Load(r.Context()))
}

// handleWatchState streams the change signal as server-sent events. The
// event carries no payload; clients re-read /state on every change, exactly
// as in-process subscribers do.
func (s *Server) handleWatchState(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	changes := make(chan struct{}, 1)
	unsubscribe := s.bus.Subscribe(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	fmt.Fprint(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-changes:
			fmt.Fprint(w, "event: change\ndata: {}\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) handleCreateComplaint(w http.ResponseWriter, r *http.Request) {
	var req createComplaintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "missing_text")
		return
	}

	complaint := state.Complaint{
		ID:        uuid.NewString(),
		Text:      strings.TrimSpace(req.Text),
		Category:  strings.TrimSpace(req.Category),
		Status:    state.ComplaintPending,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	current := s.coordinator.Current()
	current.Complaints = append(current.Complaints, complaint)
	err := s.coordinator.Save(r.Context(), current)
	writeJSON(w, http.StatusOK, struct {
		ID string `json:"id"`
		saveStatus
	}{ID: complaint.ID, saveStatus: saveStatusFrom(err)})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.extractor == nil {
		writeError(w, http.StatusServiceUnavailable, "extractor_not_configured")
		return
	}
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	category, err := state.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_category")
		return
	}
	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_content")
		return
	}

	records, err := s.extractor.Extract(r.Context(), category, content, req.MimeType)
	if err != nil {
		writeError(w, http.StatusBadGateway, "extraction_failed")
		return
	}
	if len(records) == 0 {
		// Nothing recognized is a normal outcome, not a failure.
		writeJSON(w, http.StatusOK, ingestResponse{Added: 0, saveStatus: saveStatus{Synced: true}})
		return
	}

	current := s.coordinator.Current()
	added, err := current.ApplyRecords(category, records)
	if err != nil {
		writeError(w, http.StatusBadGateway, "invalid_records")
		return
	}
	saveErr := s.coordinator.Save(r.Context(), current)
	writeJSON(w, http.StatusOK, ingestResponse{Added: added, saveStatus: saveStatusFrom(saveErr)})
}

func (s *Server) handleUploadMap(w http.ResponseWriter, r *http.Request) {
	var req uploadMapRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil || len(image) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_image")
		return
	}

	var stylized []byte
	if s.stylizer != nil {
		stylized, _ = s.stylizer.Stylize(r.Context(), image)
	}

	current := s.coordinator.Current()
	current.CampusMap = base64.StdEncoding.EncodeToString(image)
	current.CampusMapArt = ""
	if stylized != nil {
		current.CampusMapArt = base64.StdEncoding.EncodeToString(stylized)
	}
	saveErr := s.coordinator.Save(r.Context(), current)
	writeJSON(w, http.StatusOK, uploadMapResponse{Stylized: stylized != nil, saveStatus: saveStatusFrom(saveErr)})
}

func (s *Server) handleAddRecords(w http.ResponseWriter, r *http.Request) {
	category, err := state.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_category")
		return
	}
	var records []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	current := s.coordinator.Current()
	added, err := current.ApplyRecords(category, records)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_records")
		return
	}
	saveErr := s.coordinator.Save(r.Context(), current)
	writeJSON(w, http.StatusOK, ingestResponse{Added: added, saveStatus: saveStatusFrom(saveErr)})
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	category, err := state.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_category")
		return
	}
	id := chi.URLParam(r, "id")

	current := s.coordinator.Current()
	if !current.DeleteRecord(category, id) {
		writeError(w, http.StatusNotFound, "record_not_found")
		return
	}
	saveErr := s.coordinator.Save(r.Context(), current)
	writeJSON(w, http.StatusOK, saveStatusFrom(saveErr))
}

func (s *Server) handleToggleComplaint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current := s.coordinator.Current()
	if !current.ToggleComplaint(id) {
		writeError(w, http.StatusNotFound, "complaint_not_found")
		return
	}
	saveErr := s.coordinator.Save(r.Context(), current)
	writeJSON(w, http.StatusOK, saveStatusFrom(saveErr))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	err := s.coordinator.Reset(r.Context())
	writeJSON(w, http.StatusOK, saveStatusFrom(err))
}

// Utilities

// saveStatusFrom maps the coordinator's failure taxonomy onto the response
// body. The local mirror has already been written by the time Save fails, so
// the status is reported in-band rather than as an HTTP error: the admin's
// own view reflects the change even when global distribution did not happen.
func saveStatusFrom(err error) saveStatus {
	switch {
	case err == nil:
		return saveStatus{Synced: true}
	case errors.Is(err, syncer.ErrPayloadTooLarge):
		return saveStatus{Synced: false, Reason: "payload_too_large"}
	default:
		return saveStatus{Synced: false, Reason: "remote_unavailable"}
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
