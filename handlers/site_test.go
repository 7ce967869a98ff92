package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHomeFeatured(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("LEFT JOIN likes")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "slug",
			"author_id", "created_at", "username", "like_count"}).
			AddRow(1, "Least liked", "a", "least-liked", 1, time.Now(), "alice", 0).
			AddRow(2, "Second least", "b", "second-least", 1, time.Now(), "alice", 1))

	rec := httptest.NewRecorder()
	Home(db)(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Least liked")
	assert.Contains(t, body, "Second least")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContactInvalidSubmission(t *testing.T) {
	db, mock := newMock(t)

	rec := httptest.NewRecorder()
	Contact(db)(rec, postForm("/contact", url.Values{
		"name":    {""},
		"email":   {"a@b"},
		"phone":   {"123"},
		"content": {""},
	}))

	// Nothing persisted; the form is rendered again with the error.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fill the form correctly")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContactValidSubmission(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("INSERT INTO contacts")).
		WithArgs("John Doe", "john@example.com", "1234567890", "Test message").
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := httptest.NewRecorder()
	Contact(db)(rec, postForm("/contact", url.Values{
		"name":    {"John Doe"},
		"email":   {"john@example.com"},
		"phone":   {"1234567890"},
		"content": {"Test message"},
	}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sent successfully")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchQueryTooLong(t *testing.T) {
	db, mock := newMock(t)

	long := strings.Repeat("x", 79)
	rec := httptest.NewRecorder()
	Search(db)(rec, httptest.NewRequest(http.MethodGet, "/search?query="+long, nil))

	// No query reaches the database at all.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No search results found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchMatches(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("ILIKE")).
		WithArgs("%Sample%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "slug",
			"author_id", "created_at", "username"}).
			AddRow(1, "Sample Post", "This is a test content.", "test-post", 1, time.Now(), "alice"))

	rec := httptest.NewRecorder()
	Search(db)(rec, httptest.NewRequest(http.MethodGet, "/search?query=Sample", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sample Post")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchNoResults(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("ILIKE")).
		WithArgs("%nonexistent%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "slug",
			"author_id", "created_at", "username"}))

	rec := httptest.NewRecorder()
	Search(db)(rec, httptest.NewRequest(http.MethodGet, "/search?query=nonexistent", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No search results found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignUpValidation(t *testing.T) {
	tests := []struct {
		name    string
		form    url.Values
		message string
	}{
		{
			name: "username too long",
			form: url.Values{
				"username": {"averyverylongname"},
				"pass1":    {"pw"}, "pass2": {"pw"},
			},
			message: "under 10 characters",
		},
		{
			name: "username not alphanumeric",
			form: url.Values{
				"username": {"bad name!"},
				"pass1":    {"pw"}, "pass2": {"pw"},
			},
			message: "letters and numbers",
		},
		{
			name: "empty username",
			form: url.Values{
				"pass1": {"pw"}, "pass2": {"pw"},
			},
			message: "letters and numbers",
		},
		{
			name: "password mismatch",
			form: url.Values{
				"username": {"alice"},
				"pass1":    {"pw1"}, "pass2": {"pw2"},
			},
			message: "do not match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)

			rec := httptest.NewRecorder()
			SignUp(db)(rec, postForm("/signup", tt.form))

			// No INSERT expectation: validation failures never hit the db.
			requireRedirect(t, rec, "/")
			requireFlash(t, rec, "error", tt.message)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSignUpSuccess(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("INSERT INTO users")).
		WithArgs("alice", "alice@example.com", sqlmock.AnyArg(), "Alice", "Smith", "Alice Smith").
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := httptest.NewRecorder()
	SignUp(db)(rec, postForm("/signup", url.Values{
		"username": {"alice"},
		"email":    {"alice@example.com"},
		"fname":    {"Alice"},
		"lname":    {"Smith"},
		"pass1":    {"password123"},
		"pass2":    {"password123"},
	}))

	requireRedirect(t, rec, "/")
	requireFlash(t, rec, "success", "successfully created")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginUnknownUser(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("SELECT id, password FROM users WHERE username = $1")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	rec := httptest.NewRecorder()
	Login(db)(rec, postForm("/login", url.Values{
		"loginusername": {"ghost"},
		"loginpassword": {"whatever"},
	}))

	requireRedirect(t, rec, "/")
	requireFlash(t, rec, "error", "Invalid credentials")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginWrongPassword(t *testing.T) {
	db, mock := newMock(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.MinCost)
	require.NoError(t, err)
	mock.ExpectQuery(q("SELECT id, password FROM users WHERE username = $1")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password"}).AddRow(1, string(hash)))

	rec := httptest.NewRecorder()
	Login(db)(rec, postForm("/login", url.Values{
		"loginusername": {"alice"},
		"loginpassword": {"wrong"},
	}))

	// Same generic message as an unknown user: no account enumeration.
	requireRedirect(t, rec, "/")
	requireFlash(t, rec, "error", "Invalid credentials")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginSuccess(t *testing.T) {
	db, mock := newMock(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	mock.ExpectQuery(q("SELECT id, password FROM users WHERE username = $1")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password"}).AddRow(1, string(hash)))

	rec := httptest.NewRecorder()
	Login(db)(rec, postForm("/login", url.Values{
		"loginusername": {"alice"},
		"loginpassword": {"password123"},
	}))

	requireRedirect(t, rec, "/")
	requireFlash(t, rec, "success", "logged in")

	var sessionCookie bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "echothoughts" {
			sessionCookie = true
		}
	}
	assert.True(t, sessionCookie)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogout(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(loginCookie(t, 1))

	rec := httptest.NewRecorder()
	Logout()(rec, req)

	requireRedirect(t, rec, "/")
	requireFlash(t, rec, "success", "logged out")
}
