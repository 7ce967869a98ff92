package session

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echothoughts.com/echothoughts/models"
)

func init() {
	Init([]byte("test-secret"))
}

func carryCookies(t *testing.T, rec *httptest.ResponseRecorder, target string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	req.AddCookie(cookies[len(cookies)-1])
	return req
}

func TestFlashIsSingleRead(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	AddFlash(rec, req, LevelWarning, "No search results found.")

	next := carryCookies(t, rec, "/")
	rec2 := httptest.NewRecorder()
	flashes := Flashes(rec2, next)
	require.Len(t, flashes, 1)
	assert.Equal(t, LevelWarning, flashes[0].Level)
	assert.Equal(t, "No search results found.", flashes[0].Message)

	// Drained: the next page load sees nothing.
	again := carryCookies(t, rec2, "/")
	assert.Empty(t, Flashes(httptest.NewRecorder(), again))
}

func TestCurrentUserNoSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	u, err := CurrentUser(db, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Nil(t, u)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignInThenCurrentUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email",
			"first_name", "last_name", "display_name", "created_at"}).
			AddRow(7, "alice", "alice@example.com", "Alice", "Smith", "Alice Smith", time.Now()))

	rec := httptest.NewRecorder()
	require.NoError(t, SignIn(rec, httptest.NewRequest(http.MethodPost, "/login", nil), 7))

	u, err := CurrentUser(db, carryCookies(t, rec, "/"))
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, 7, u.ID)
	assert.Equal(t, "alice", u.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignOutClearsUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec := httptest.NewRecorder()
	require.NoError(t, SignIn(rec, httptest.NewRequest(http.MethodPost, "/login", nil), 7))

	rec2 := httptest.NewRecorder()
	require.NoError(t, SignOut(rec2, carryCookies(t, rec, "/logout")))

	u, err := CurrentUser(db, carryCookies(t, rec2, "/"))
	require.NoError(t, err)
	assert.Nil(t, u)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequireUserAnonymous(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = RequireUser(db, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}
