package transport

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/marcus-ai/marcus/pkg/config"
	"github.com/marcus-ai/marcus/pkg/domain"
	"github.com/marcus-ai/marcus/pkg/logger"
)

// HTTPServer exposes the three logical endpoints over streamable HTTP, one
// route per endpoint, each guarded by bearer-token auth. Grounded on the
// teacher's pkg/api/server.go + auth.go: auto-generated session API key
// printed once at startup, corsMiddleware/authMiddleware chain, constant-time
// token comparison.
type HTTPServer struct {
	dispatcher *Dispatcher
	log        *logger.Logger
	apiKey     string
	addr       string
	server     *http.Server
	hub        *wsHub
}

func NewHTTPServer(cfg config.TransportConfig, d *Dispatcher, bus domain.EventBus, log *logger.Logger) *HTTPServer {
	apiKey := cfg.APIKey
	if apiKey == "" {
		raw := make([]byte, 24)
		if _, err := rand.Read(raw); err == nil {
			apiKey = hex.EncodeToString(raw)
			fmt.Println()
			fmt.Println("======================================================")
			fmt.Println(" MARCUS API KEY (session token)")
			fmt.Printf(" %s\n", apiKey)
			fmt.Println(" Set transport.api_key in config to make this permanent.")
			fmt.Println("======================================================")
			fmt.Println()
		}
	}
	return &HTTPServer{dispatcher: d, log: log, apiKey: apiKey, addr: cfg.HTTPAddr, hub: newWSHub(bus, log)}
}

func (s *HTTPServer) Serve(ctx context.Context) error {
	go s.hub.run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/agent", s.endpointHandler(EndpointAgent))
	mux.HandleFunc("/human", s.endpointHandler(EndpointHuman))
	mux.HandleFunc("/analytics", s.endpointHandler(EndpointAnalytics))
	mux.HandleFunc("/ws", s.hub.handleUpgrade)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      corsMiddleware(s.authMiddleware(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.InfoCF("transport", "http server starting", logger.Fields{"addr": s.addr})

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type httpRequest struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args"`
}

func (s *HTTPServer) endpointHandler(ep Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"success": false, "error": "method not allowed"})
			return
		}
		var req httpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "malformed request: " + err.Error()})
			return
		}
		env := s.dispatcher.Dispatch(r.Context(), ep, req.Tool, req.Args)
		writeJSON(w, http.StatusOK, env)
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, err := marshalEnvelope(v)
	if err != nil {
		return
	}
	w.Write(data)
}

// authMiddleware wraps mux with bearer token checking. Mirrors the
// teacher's picoclaw auth.go: health check exempted, constant-time compare.
func (s *HTTPServer) authMiddleware(next http.Handler) http.Handler {
	if s.apiKey == "" {
		s.log.WarnCF("transport", "http auth disabled — no api key available", nil)
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		token := extractToken(r)
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.apiKey)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="marcus"`)
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	return ""
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
