package imageserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"himawari-desktop/internal/cache"
	"himawari-desktop/internal/common"
	"himawari-desktop/internal/taskqueue"
)

// HistorySource lists recorded runs, newest first
type HistorySource interface {
	History(limit int) ([]*taskqueue.RunRecord, error)
}

// Server serves the newest saved image, the run history and cached tiles to
// local tools such as desktop widgets
type Server struct {
	history   HistorySource
	tileCache *cache.PersistentTileCache
	logger    *slog.Logger

	server *http.Server
	url    string
}

// NewServer creates a new image server. tileCache may be nil.
func NewServer(history HistorySource, tileCache *cache.PersistentTileCache, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		history:   history,
		tileCache: tileCache,
		logger:    logger,
	}
}

// URL returns the base URL once the server has started
func (s *Server) URL() string {
	return s.url
}

// Handler returns the routes wrapped in the CORS middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /latest", s.handleLatest)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /tiles/{level}/{stamp}/{x}/{y}", s.handleTile)
	return corsMiddleware(mux)
}

// corsMiddleware lets browser-based widgets read from the server
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		// Handle preflight OPTIONS request
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start listens on addr (e.g. "127.0.0.1:0") and serves in the background
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start image server: %w", err)
	}

	s.url = "http://" + listener.Addr().String()
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("image server started", "url", s.url)

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("image server stopped", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// handleLatest serves the image written by the newest successful run
// URL format: /latest
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	records, err := s.history.History(0)
	if err != nil {
		s.logger.Warn("failed to load history", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	for _, record := range records {
		if record.Status == taskqueue.RunStatusFailed || record.OutputPath == "" {
			continue
		}
		if _, err := os.Stat(record.OutputPath); err != nil {
			continue
		}
		w.Header().Set("X-Image-Time", record.ImageTime.UTC().Format(time.RFC3339))
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, record.OutputPath)
		return
	}

	http.Error(w, "no image downloaded yet", http.StatusNotFound)
}

// handleHistory returns recorded runs as JSON
// URL format: /history?limit={n}
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.history.History(limit)
	if err != nil {
		s.logger.Warn("failed to load history", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*taskqueue.RunRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		s.logger.Debug("failed to write history response", "error", err)
	}
}

// handleTile serves a raw tile from the cache; it never reaches the network
// URL format: /tiles/{level}/{YYYYMMDD_HHMMSS}/{x}/{y}
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	if s.tileCache == nil {
		http.Error(w, "tile cache disabled", http.StatusNotFound)
		return
	}

	level, err := common.ParseLevel(r.PathValue("level"))
	if err != nil {
		http.Error(w, "Invalid level", http.StatusBadRequest)
		return
	}
	stamp := r.PathValue("stamp")
	if _, err := time.Parse(common.FilenameDate, stamp); err != nil {
		http.Error(w, "Invalid timestamp, expected YYYYMMDD_HHMMSS", http.StatusBadRequest)
		return
	}
	x, errX := strconv.Atoi(r.PathValue("x"))
	y, errY := strconv.Atoi(r.PathValue("y"))
	if errX != nil || errY != nil || !(common.TileCoord{X: x, Y: y}).InGrid(level) {
		http.Error(w, "Invalid tile coordinate", http.StatusBadRequest)
		return
	}

	key := cache.Key(common.ProviderHimawari, level.Int(), x, y, stamp)
	data, found := s.tileCache.Get(key)
	if !found {
		http.Error(w, "tile not cached", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=31536000") // tiles never change
	w.Header().Set("X-Cache-Status", "HIT")
	w.Write(data)
}
