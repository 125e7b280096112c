package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"peersync-server/internal/client"
	"peersync-server/internal/config"
	"peersync-server/internal/handler"
	"peersync-server/internal/middleware"
	"peersync-server/internal/repository"
	"peersync-server/internal/service"
	"peersync-server/internal/store"
	"peersync-server/internal/websocket"
	"peersync-server/pkg/hash"

	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := os.MkdirAll(cfg.Sync.SnapshotDir, 0o750); err != nil {
		log.Fatalf("Failed to create snapshot directory: %v", err)
	}

	adminPasswordHash, err := hash.Password(cfg.Admin.Password)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	journalRepo := repository.NewJournalRepository(db.DB())
	recordRepo := repository.NewRecordRepository(db.DB())
	peerRepo := repository.NewPeerRepository(db.DB())
	watermarkRepo := repository.NewWatermarkRepository(db.DB())
	sessionRepo := repository.NewSessionRepository(db.DB())

	wsManager := websocket.NewManager(
		cfg.WebSocket.MaxConnections,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
	)
	go wsManager.Run()

	peerTransport := client.NewPeerClient(cfg.Node.ID, cfg.Node.RegistrationSecret, cfg.Sync.HTTPTimeout)

	authService := service.NewAuthService(peerRepo, cfg.Node.RegistrationSecret, adminPasswordHash, cfg.JWT.Secret, cfg.JWT.Expiration)
	peerService := service.NewPeerService(peerRepo, cfg.Node.RegistrationSecret)
	journalService := service.NewJournalService(db.DB(), journalRepo, recordRepo, cfg.Node.ID)
	pullService := service.NewPullService(journalRepo)
	applyService := service.NewApplyService(db.DB(), journalRepo, recordRepo, watermarkRepo)
	sessionService := service.NewSessionService(sessionRepo, websocket.NewProgressBroadcaster(wsManager))
	snapshotService := service.NewSnapshotService(
		db.DB(),
		journalRepo,
		recordRepo,
		watermarkRepo,
		peerService,
		sessionService,
		peerTransport,
		cfg.Node.ID,
		cfg.Sync.SnapshotDir,
	)
	syncRunner := service.NewSyncRunner(
		sessionService,
		applyService,
		peerService,
		watermarkRepo,
		peerTransport,
		cfg.Node.ID,
		cfg.Sync.PullPageSize,
	)

	authHandler := handler.NewAuthHandler(authService)
	syncHandler := handler.NewSyncHandler(pullService)
	snapshotHandler := handler.NewSnapshotHandler(snapshotService)
	peerHandler := handler.NewPeerHandler(peerService)
	sessionHandler := handler.NewSessionHandler(sessionService, syncRunner, snapshotService, cfg.Sync.SessionListLimit)
	recordHandler := handler.NewRecordHandler(journalService)
	wsHandler := handler.NewWebSocketHandler(wsManager, cfg.JWT.Secret)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// Peer-facing sync protocol, authenticated by registration credential.
	sync := api.PathPrefix("/sync").Subrouter()
	sync.Use(middleware.PeerAuthMiddleware(authService))

	sync.HandleFunc("/pull", syncHandler.Pull).Methods("POST", "OPTIONS")
	sync.HandleFunc("/snapshot", snapshotHandler.Deliver).Methods("POST", "OPTIONS")
	sync.HandleFunc("/restore", snapshotHandler.Restore).Methods("POST", "OPTIONS")

	// Operator API, authenticated by JWT.
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	admin.HandleFunc("/peers", peerHandler.Register).Methods("POST", "OPTIONS")
	admin.HandleFunc("/peers", peerHandler.List).Methods("GET", "OPTIONS")
	admin.HandleFunc("/peers/{id}/activate", peerHandler.Activate).Methods("POST", "OPTIONS")
	admin.HandleFunc("/peers/{id}/deactivate", peerHandler.Deactivate).Methods("POST", "OPTIONS")

	admin.HandleFunc("/sessions", sessionHandler.List).Methods("GET", "OPTIONS")
	admin.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods("GET", "OPTIONS")
	admin.HandleFunc("/sessions/{id}/cancel", sessionHandler.Cancel).Methods("POST", "OPTIONS")

	admin.HandleFunc("/sync/pull", sessionHandler.StartPull).Methods("POST", "OPTIONS")
	admin.HandleFunc("/sync/initial-load", sessionHandler.StartInitialLoad).Methods("POST", "OPTIONS")

	admin.HandleFunc("/records", recordHandler.Upsert).Methods("POST", "OPTIONS")
	admin.HandleFunc("/records/{table}/{id}", recordHandler.Get).Methods("GET", "OPTIONS")
	admin.HandleFunc("/records/{table}/{id}", recordHandler.Delete).Methods("DELETE", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.HandleConnection)

	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/", rootHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting PeerSync Server on %s (node: %s, env: %s)", addr, cfg.Node.ID, cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"peersync-server"}`))
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"PeerSync Server API","version":"1.0.0","endpoints":{"/api/v1/auth/login":"POST","/api/v1/sync/pull":"POST (peer)","/api/v1/admin/sessions":"GET (operator)"}}`))
}
