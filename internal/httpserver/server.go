package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/fdg312/menu-batches/internal/auth"
	"github.com/fdg312/menu-batches/internal/batches"
	"github.com/fdg312/menu-batches/internal/blob"
	"github.com/fdg312/menu-batches/internal/config"
	"github.com/fdg312/menu-batches/internal/exports"
	"github.com/fdg312/menu-batches/internal/storage"
	"github.com/fdg312/menu-batches/internal/storage/memory"
	"github.com/fdg312/menu-batches/internal/storage/postgres"
)

// Server представляет HTTP сервер
type Server struct {
	config         *config.Config
	mux            *http.ServeMux
	storage        storage.Storage
	authMiddleware *auth.Middleware
	httpServer     *http.Server
}

// New создаёт сервер; storage выбирается по DATABASE_URL
func New(cfg *config.Config) *Server {
	return NewWithStorage(cfg, openStorage(cfg))
}

// NewWithStorage создаёт сервер поверх готового storage
func NewWithStorage(cfg *config.Config, st storage.Storage) *Server {
	s := &Server{
		config:  cfg,
		mux:     http.NewServeMux(),
		storage: st,
	}
	s.routes()
	return s
}

func openStorage(cfg *config.Config) storage.Storage {
	if cfg.DatabaseURL == "" {
		log.Println("INFO storage: using in-memory storage")
		return memory.New()
	}

	log.Println("INFO storage: connecting to PostgreSQL...")
	pg, err := postgres.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Printf("WARN storage: postgres connection failed: %v", err)
		log.Println("WARN storage: falling back to in-memory storage")
		return memory.New()
	}
	log.Println("INFO storage: PostgreSQL connected")
	return pg
}

// routes регистрирует маршруты
func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealthz)

	// Auth API (public)
	authService := auth.NewService(s.config)
	authHandler := auth.NewHandlers(authService)
	s.authMiddleware = auth.NewMiddleware(s.config, authService)

	// POST /v1/auth/dev - dev token for a role
	s.mux.HandleFunc("POST /v1/auth/dev", authHandler.HandleDevAuth)

	// Batches API
	batchService := batches.NewService(s.storage, s.config)
	batchHandler := batches.NewHandler(batchService)

	s.mux.HandleFunc("POST /v1/batches", batchHandler.HandleCreate)
	s.mux.HandleFunc("PUT /v1/batches/{id}", batchHandler.HandleUpdate)
	s.mux.HandleFunc("PATCH /v1/batches/{id}/submit", batchHandler.HandleSubmit)
	s.mux.HandleFunc("GET /v1/batches/{id}/items", batchHandler.HandleGetItems)
	s.mux.HandleFunc("GET /v1/batches/{id}/rejection-reason", batchHandler.HandleGetRejectionReason)
	s.mux.HandleFunc("GET /v1/batches/{id}/calendar", batchHandler.HandleCalendar)
	s.mux.HandleFunc("POST /v1/batches/approve", batchHandler.HandleApprove)
	s.mux.HandleFunc("POST /v1/batches/{id}/reject", batchHandler.HandleReject)
	s.mux.HandleFunc("POST /v1/batches/{id}/events", batchHandler.HandleEvent)
	s.mux.HandleFunc("DELETE /v1/batches/{id}/content", batchHandler.HandleDeleteContent)
	s.mux.HandleFunc("GET /v1/batches", batchHandler.HandleList)
	s.mux.HandleFunc("GET /v1/batches/stats", batchHandler.HandleStats)

	// GET /v1/menus/{consumerId}?year=&month=
	s.mux.HandleFunc("GET /v1/menus/{consumerId}", batchHandler.HandleGetMonthlyMenu)

	// GET /v1/me/batches - batches of the signed-in consumer
	s.mux.HandleFunc("GET /v1/me/batches", batchHandler.HandleMine)

	// Exports API
	exportsStore, mode, err := blob.NewExportsStore(context.Background(), s.config.Blob, log.Default())
	if err != nil {
		log.Printf("WARN exports: %v, streaming exports directly", err)
		exportsStore = nil
		mode = config.BlobModeLocal
	}
	ttl := time.Duration(s.config.ExportsTTLMinutes) * time.Minute
	exportService := exports.NewService(batchService, exportsStore, ttl)
	exportHandler := exports.NewHandlers(exportService)
	log.Printf("INFO exports: mode=%s ttl=%s", mode, ttl)

	// GET /v1/batches/{id}/export?format=pdf|csv
	s.mux.HandleFunc("GET /v1/batches/{id}/export", exportHandler.HandleExport)
}

// handleHealthz возвращает статус сервера
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// Handler собирает цепочку middleware: CORS → Rate Limit → Auth → Router
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	handler = s.authMiddleware.Wrap(handler)
	handler = RateLimitMiddleware(s.config, handler)
	handler = CORSMiddleware(s.config, handler)
	return handler
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("INFO server: listening on http://localhost%s", addr)
	log.Printf("INFO server: batches API http://localhost%s/v1/batches", addr)

	return s.httpServer.ListenAndServe()
}

// Close останавливает сервер и закрывает storage
func (s *Server) Close() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("WARN server: shutdown: %v", err)
		}
	}
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}
