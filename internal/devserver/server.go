package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atelier-dev/atelier/pkg/platform"
)

// Server is the local platform emulator: the REST surface the platform
// client consumes, the auth session endpoint, the realtime hub and a
// Prometheus scrape endpoint.
type Server struct {
	logger  *slog.Logger
	store   *Store
	hub     *Hub
	anonKey string
	router  chi.Router
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAnonKey makes the emulator reject requests whose apikey header
// does not match. Default: any apikey is accepted.
func WithAnonKey(key string) ServerOption {
	return func(s *Server) {
		s.anonKey = key
	}
}

// NewServer wires the emulator's routes.
func NewServer(store *Store, hub *Hub, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		logger: logger,
		store:  store,
		hub:    hub,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/rest/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Get("/rows", s.handleRows)
		r.Post("/likes/toggle", s.handleToggleLike)
		r.Post("/collections/{collectionID}/items", s.handleCollectionAdd)
		r.Delete("/collections/{collectionID}/items/{itemID}", s.handleCollectionRemove)
	})
	r.Get("/auth/v1/session", s.handleSession)
	r.Get("/realtime/v1/ws", hub.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("apikey")
		if key == "" || (s.anonKey != "" && key != s.anonKey) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid apikey"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the bearer token against the seeded sessions.
func (s *Server) authenticate(r *http.Request) (SessionRow, bool) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return SessionRow{}, false
	}
	return s.store.Session(token)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	row, ok := s.authenticate(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}
	writeJSON(w, http.StatusOK, platform.Session{User: platform.User{
		ID:        row.UserID,
		Name:      row.Name,
		AvatarURL: row.AvatarURL,
	}})
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("table") != "images" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown table"})
		return
	}
	from, err1 := strconv.Atoi(q.Get("from"))
	to, err2 := strconv.Atoi(q.Get("to"))
	if err1 != nil || err2 != nil || from < 0 || to < from {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad range"})
		return
	}

	rows := s.store.QueryImages(from, to)
	if rows == nil {
		rows = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authenticate(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "sign in required"})
		return
	}

	var req platform.ToggleLikeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// The like belongs to the authenticated user, whatever the body says.
	count, found := s.store.ToggleLike(sess.UserID, req.ItemID, req.Liked)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown item"})
		return
	}
	writeJSON(w, http.StatusOK, platform.ToggleLikeResult{OK: true, NewCount: count})
}

func (s *Server) handleCollectionAdd(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "sign in required"})
		return
	}

	collectionID := chi.URLParam(r, "collectionID")
	var req platform.CollectionAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}
	if req.ItemID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item_id must be positive"})
		return
	}

	if !s.store.AddMembership(collectionID, req.ItemID) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already in collection"})
		return
	}
	writeJSON(w, http.StatusOK, platform.CollectionMutationResult{OK: true})
}

func (s *Server) handleCollectionRemove(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "sign in required"})
		return
	}

	collectionID := chi.URLParam(r, "collectionID")
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || itemID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad item id"})
		return
	}

	s.store.RemoveMembership(collectionID, itemID)
	writeJSON(w, http.StatusOK, platform.CollectionMutationResult{OK: true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
