package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"echothoughts.com/echothoughts/logging"
	"echothoughts.com/echothoughts/models"
	"echothoughts.com/echothoughts/session"
)

// AuthedHandler is a handler that only runs with a signed-in user.
type AuthedHandler func(user *models.User, w http.ResponseWriter, r *http.Request)

// RequireLogin resolves the session user and redirects anonymous requests to
// the login entry point with an error flash.
func RequireLogin(db *sql.DB, next AuthedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := session.RequireUser(db, r)
		if errors.Is(err, models.ErrUnauthenticated) {
			session.AddFlash(w, r, session.LevelError, "Please log in to continue.")
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		if err != nil {
			logging.L.Error().Err(err).Msg("load current user")
			http.Error(w, "Database query failed", http.StatusInternalServerError)
			return
		}
		next(user, w, r)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestLogger tags each request with an id and logs method, path, status
// and duration.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		logging.L.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
