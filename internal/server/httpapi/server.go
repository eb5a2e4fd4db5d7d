// Package httpapi exposes the server's public HTTP JSON surface: the
// authentication endpoints, account management, and picture metadata routes.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/picvault/picvault/internal/logging"
	"github.com/picvault/picvault/internal/server/auth"
	"github.com/picvault/picvault/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

type HTTPServer struct {
	address string
	logger  logging.Logger
	tokens  *auth.TokenService
	auth    *services.AuthService
	users   *services.UserService
	images  *services.ImageService
}

func NewHTTPServer(address string, l logging.Logger, tokens *auth.TokenService,
	as *services.AuthService, us *services.UserService, is *services.ImageService) *HTTPServer {
	return &HTTPServer{
		address: address,
		logger:  l.With("module", "http_server"),
		tokens:  tokens,
		auth:    as,
		users:   us,
		images:  is,
	}
}

// routes wires every endpoint. Authentication is attached globally as a
// pass-through: it annotates the request context when a valid bearer token
// is present, and protected handlers reject requests without a principal.
func (s *HTTPServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/ping", s.handlePing)

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/login-2fa", s.handleLoginTwoFactor)
	mux.HandleFunc("POST /api/auth/refresh-token", s.handleRefresh)

	mux.HandleFunc("POST /api/2fa/setup", s.requirePrincipal(s.handleTwoFactorSetup))
	mux.HandleFunc("POST /api/2fa/verify", s.requirePrincipal(s.handleTwoFactorVerify))

	mux.HandleFunc("GET /api/users/me", s.requirePrincipal(s.handleMe))
	mux.HandleFunc("PATCH /api/users/me", s.requirePrincipal(s.handleUpdateMe))
	mux.HandleFunc("DELETE /api/users/me", s.requirePrincipal(s.handleDeleteMe))

	mux.HandleFunc("POST /api/images", s.requirePrincipal(s.handleImageUpload))
	mux.HandleFunc("GET /api/images", s.requirePrincipal(s.handleImageList))
	mux.HandleFunc("GET /api/images/{id}/view", s.requirePrincipal(s.handleImageView))
	mux.HandleFunc("PATCH /api/images/{id}", s.requirePrincipal(s.handleImageUpdate))
	mux.HandleFunc("DELETE /api/images/{id}", s.requirePrincipal(s.handleImageDelete))

	return s.authMiddleware(mux)
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (s *HTTPServer) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:    s.address,
		Handler: s.routes(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
