// Package session wraps the cookie store: current-user lookup, sign-in and
// sign-out, and one-shot flash messages shown on the next rendered page.
package session

import (
	"database/sql"
	"encoding/gob"
	"net/http"

	"github.com/gorilla/sessions"

	"echothoughts.com/echothoughts/logging"
	"echothoughts.com/echothoughts/models"
)

const (
	sessionName = "echothoughts"
	userKey     = "user_id"
)

const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelWarning = "warning"
)

// Flash is a transient status message carried across one redirect.
type Flash struct {
	Level   string
	Message string
}

func init() {
	gob.Register(Flash{})
}

var store *sessions.CookieStore

func Init(secret []byte) {
	store = sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func SignIn(w http.ResponseWriter, r *http.Request, userID int) error {
	s, _ := store.Get(r, sessionName)
	s.Values[userKey] = userID
	return s.Save(r, w)
}

func SignOut(w http.ResponseWriter, r *http.Request) error {
	s, _ := store.Get(r, sessionName)
	delete(s.Values, userKey)
	return s.Save(r, w)
}

// CurrentUser resolves the session's user against the users table. A request
// with no session, or a session pointing at a deleted user, yields nil with
// no error.
func CurrentUser(db *sql.DB, r *http.Request) (*models.User, error) {
	s, _ := store.Get(r, sessionName)
	id, ok := s.Values[userKey].(int)
	if !ok {
		return nil, nil
	}

	var u models.User
	err := db.QueryRow(`SELECT id, username, email, first_name, last_name,
        display_name, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName,
			&u.DisplayName, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// RequireUser is CurrentUser with models.ErrUnauthenticated instead of nil
// when no user is signed in.
func RequireUser(db *sql.DB, r *http.Request) (*models.User, error) {
	u, err := CurrentUser(db, r)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, models.ErrUnauthenticated
	}
	return u, nil
}

func AddFlash(w http.ResponseWriter, r *http.Request, level, message string) {
	s, _ := store.Get(r, sessionName)
	s.AddFlash(Flash{Level: level, Message: message})
	if err := s.Save(r, w); err != nil {
		logging.L.Error().Err(err).Msg("save flash")
	}
}

// Flashes drains and returns the pending status messages.
func Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	s, _ := store.Get(r, sessionName)
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := s.Save(r, w); err != nil {
		logging.L.Error().Err(err).Msg("clear flashes")
	}

	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	return out
}
