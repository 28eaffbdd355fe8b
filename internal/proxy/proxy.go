// Package proxy serves a local reverse proxy in front of the Wallhaven API
// and its image hosts so browser clients avoid CORS and hotlink limits.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"go-wallhaven-browser/internal/api"
	"go-wallhaven-browser/internal/models"
	"go-wallhaven-browser/internal/origin"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	rscors "github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

// Route prefixes served by the proxy.
const (
	APIPrefix   = "/api/wallhaven"
	ImagePrefix = "/proxy/image"
	ThumbPrefix = "/proxy/thumb"
)

// Targets are the upstream bases for each route.
type Targets struct {
	API   string
	Image string
	Thumb string
}

// DefaultTargets points at the public Wallhaven hosts.
func DefaultTargets() Targets {
	return Targets{API: origin.SiteHost, Image: origin.ImageHost, Thumb: origin.ThumbHost}
}

// Server is the proxy handler plus its listen address.
type Server struct {
	http.Handler
	Addr string
}

// New builds the router. apiKey, when set, is added to API requests that
// do not carry their own key.
func New(cfg models.ProxyConfig, targets Targets, apiKey string) (*Server, error) {
	apiProxy, err := newReverseProxy(targets.API, apiKey)
	if err != nil {
		return nil, fmt.Errorf("api target: %w", err)
	}
	imageProxy, err := newReverseProxy(targets.Image, "")
	if err != nil {
		return nil, fmt.Errorf("image target: %w", err)
	}
	thumbProxy, err := newReverseProxy(targets.Thumb, "")
	if err != nil {
		return nil, fmt.Errorf("thumb target: %w", err)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	cors := rscors.New(rscors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"X-API-Key", "Content-Type"},
		Debug:          false,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle(APIPrefix+"/*", http.StripPrefix(APIPrefix, apiProxy))
	r.Handle(ImagePrefix+"/*", http.StripPrefix(ImagePrefix, imageProxy))
	r.Handle(ThumbPrefix+"/*", http.StripPrefix(ThumbPrefix, thumbProxy))

	addr := cfg.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:5174"
	}
	return &Server{Handler: r, Addr: addr}, nil
}

func newReverseProxy(target, apiKey string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", target)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.Out.Header.Set("User-Agent", api.UserAgent)
			pr.Out.Header.Del("Cookie")
			if apiKey != "" && pr.Out.Header.Get("X-API-Key") == "" {
				pr.Out.Header.Set("X-API-Key", apiKey)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.WithError(err).Warnf("[Proxy] Upstream %s failed for %s", u.Host, r.URL.Path)
			w.WriteHeader(http.StatusBadGateway)
		},
	}, nil
}

// requestLogger logs each request through logrus.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start).Round(time.Millisecond),
			"req_id":   middleware.GetReqID(r.Context()),
		}).Debugf("[Proxy] %s %s", r.Method, strings.TrimSpace(r.URL.Path))
	})
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("[Proxy] Listening on http://%s", s.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("[Proxy] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
