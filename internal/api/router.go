package api

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"postboard/internal/auth"
	"postboard/internal/blob"
	"postboard/internal/config"
	"postboard/internal/mediaurl"
	"postboard/internal/session"
	"postboard/internal/store"
)

type Server struct {
	router *chi.Mux
	config *config.Config
}

func NewServer(
	cfg *config.Config,
	st store.Store,
	sessions *session.Service,
	tokens *auth.TokenIssuer,
	blobs *blob.Service,
) *Server {
	baseURL := cfg.Server.BaseURL

	authHandler := NewAuthHandler(sessions)
	userHandler := NewUserHandler(st.Users(), blobs, baseURL)
	postHandler := NewPostHandler(st.Posts(), st.Comments(), blobs, baseURL)
	commentHandler := NewCommentHandler(st.Comments(), st.Posts(), st.Users())
	uploadHandler := NewUploadHandler(st.Posts(), blobs, baseURL)
	mediaHandler := NewMediaHandler(blobs)
	healthHandler := NewHealthHandler(st)

	authMiddleware := NewAuthMiddleware(tokens)
	authLimiter := RateLimitMiddleware(cfg.Limits.AuthRequestsPerMinute, time.Minute)
	jsonBody := maxBodySizeMiddleware(1 << 20) // 1 MB

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(cfg.Server.AllowedOrigins))
	r.Use(securityHeadersMiddleware)

	r.Get("/health", healthHandler.Check)
	r.Get(mediaurl.PathPrefix+"{kind}/{name}", mediaHandler.GetUpload)

	r.Route("/user", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authLimiter)
			r.Use(jsonBody)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/google/login", authHandler.GoogleLogin)
			r.Post("/refreshToken", authHandler.RefreshToken)
			r.Post("/logout", authHandler.Logout)
		})

		r.With(authMiddleware.Authorize).Get("/me", userHandler.GetMe)
		r.With(authMiddleware.OptionalAuthorize).Get("/{id}", userHandler.GetByID)
		r.With(authMiddleware.Authorize).Put("/{id}", userHandler.Update)
	})

	r.Route("/post", func(r chi.Router) {
		r.Get("/", postHandler.List)
		r.Get("/{post_id}", postHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authorize)
			r.Post("/upload-image", uploadHandler.UploadPostImage)

			r.With(jsonBody).Post("/", postHandler.Create)
			r.With(jsonBody).Put("/{post_id}", postHandler.Update)
			r.Delete("/{post_id}", postHandler.Delete)
			r.Post("/{post_id}/like", postHandler.ToggleLike)
		})
	})

	r.Route("/comment", func(r chi.Router) {
		r.Get("/", commentHandler.ListByPost)
		r.Get("/{comment_id}", commentHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authorize)
			r.Use(jsonBody)
			r.Post("/", commentHandler.Create)
			r.Put("/{comment_id}", commentHandler.Update)
			r.Delete("/{comment_id}", commentHandler.Delete)
		})
	})

	return &Server{
		router: r,
		config: cfg,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// corsMiddleware echoes allowed origins back. Loopback origins are always
// allowed so a local frontend dev server works without configuration.
// Requests without an Origin header are not browser cross-origin requests
// and pass through untouched.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" {
			allowed[strings.ToLower(origin)] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			_, ok := allowed[strings.ToLower(origin)]
			if !ok && !isLoopbackOrigin(origin) {
				badRequestWithStatus(w, http.StatusForbidden, "Origin not allowed")
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}

	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// badRequestWithStatus writes an INVALID_REQUEST envelope with a status other
// than 400.
func badRequestWithStatus(w http.ResponseWriter, status int, message string) {
	writeError(w, status, ErrCodeInvalidRequest, message)
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
