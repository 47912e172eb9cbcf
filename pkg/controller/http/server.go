package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chapterkit/doorman/pkg/service/dispatch"
	"github.com/chapterkit/doorman/pkg/utils/logging"
)

// Server is the webhook HTTP frontend. All Slack traffic goes through the
// signature verification middleware; there is no other authentication.
type Server struct {
	router        *chi.Mux
	dispatcher    *dispatch.Dispatcher
	signingSecret string
	acceptEmoji   string
}

// Options is a functional option for server configuration
type Options func(*Server)

// WithAcceptEmoji sets the reaction treated as rules acceptance
func WithAcceptEmoji(emoji string) Options {
	return func(s *Server) {
		s.acceptEmoji = emoji
	}
}

// New creates the webhook server
func New(dispatcher *dispatch.Dispatcher, signingSecret string, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:        r,
		dispatcher:    dispatcher,
		signingSecret: signingSecret,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK")) //nolint:errcheck
	})

	r.Route("/hooks/slack", func(r chi.Router) {
		r.Use(SlackSignatureMiddleware(s.signingSecret))

		r.Post("/event", s.handleEvent)
		r.Post("/interaction", s.handleInteraction)
		r.Post("/command", s.handleCommand)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
