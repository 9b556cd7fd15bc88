// Package server wires every collaborator package into a runnable process
// (spec.md §4.7): config loading, the session registry, the WebSocket hub,
// the dev-terminal singleton, and the gin HTTP server, plus the signal-
// driven graceful shutdown sequence. Grounded on
// ehrlich-b-wingthing/cmd/wt/serve.go's signal.NotifyContext + bounded
// http.Server.Shutdown shape.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"clicast/audit"
	"clicast/config"
	"clicast/devterminal"
	"clicast/httpapi"
	"clicast/hub"
	"clicast/ratelimit"
	"clicast/session"
	"clicast/token"

	"github.com/redis/go-redis/v9"
)

// ShutdownGrace bounds how long http.Server.Shutdown waits for in-flight
// HTTP requests before forcing the listener down. It does not cover the
// WebSocket close writes that precede it, which are bounded per client by
// the hub's own write timeout.
const ShutdownGrace = 8 * time.Second

// Server bundles the live process state: the registry, the hub, the dev
// terminal, and the HTTP listener built from them.
type Server struct {
	cfg      *config.Config
	watcher  *config.Watcher
	registry *session.Registry
	dev      *devterminal.Terminal
	hub      *hub.Hub
	audit    *audit.Store
	httpSrv  *http.Server
}

// New builds a Server from cfg. watcher may be nil if config hot-reload
// could not be started (e.g. the config file couldn't be watched);
// callers fall back to the static cfg snapshot in that case.
func New(cfg *config.Config, watcher *config.Watcher) *Server {
	tokens := token.New(cfg)
	registry := session.NewRegistry()
	dev := devterminal.New()

	lockout := newLockout()
	auditStore := openAudit()
	registry.SetAudit(auditStore)

	h := hub.New(registry, dev, tokens)

	// source is what the path guard and AI-command resolution read from on
	// every request — the live hot-reloaded snapshot when available, the
	// static cfg otherwise (SPEC_FULL.md §5.9).
	var source httpapi.ConfigSource = httpapi.StaticConfig(cfg)
	if watcher != nil {
		source = watcher
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Config:   cfg,
		Watcher:  watcher,
		Registry: registry,
		Source:   source,
		Tokens:   tokens,
		Lockout:  lockout,
		Audit:    auditStore,
		Hub:      h,
	})

	return &Server{
		cfg:      cfg,
		watcher:  watcher,
		registry: registry,
		dev:      dev,
		hub:      h,
		audit:    auditStore,
		httpSrv: &http.Server{
			Addr:    ":" + strconv.Itoa(cfg.Port),
			Handler: router,
		},
	}
}

// newLockout backs the login-lockout with Redis when REDIS_URL is set
// (SPEC_FULL.md §5.10), else an in-process map — a single local developer
// never needs to stand up Redis just to get the feature.
func newLockout() ratelimit.Lockout {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		return ratelimit.NewMemory()
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[server] invalid REDIS_URL, falling back to in-memory lockout: %v", err)
		return ratelimit.NewMemory()
	}
	return ratelimit.NewRedis(redis.NewClient(opts))
}

// openAudit opens the sqlite-backed audit log (SPEC_FULL.md §5.11). A
// failure to open it is logged and audit logging becomes a no-op rather
// than a reason to refuse to serve traffic.
func openAudit() *audit.Store {
	path := os.Getenv("CLICAST_AUDIT_DB")
	if path == "" {
		path = "clicast-audit.db"
	}
	store, err := audit.Open(path)
	if err != nil {
		log.Printf("[server] audit log unavailable, continuing without it: %v", err)
		return nil
	}
	return store
}

// Run starts the HTTP listener and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("clicast listening on %s\n", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown performs spec.md §4.7's sequence: close all WebSocket clients
// with code 1001, terminate every session, stop the reaper, stop the dev
// PTY, then stop the HTTP listener. Only the final listener shutdown is
// bounded by ShutdownGrace; the steps before it run to completion first.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
	defer cancel()

	s.hub.Shutdown()
	s.registry.Shutdown()
	_ = s.dev.Kill()
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	if s.audit != nil {
		_ = s.audit.Close()
	}

	return s.httpSrv.Shutdown(ctx)
}
