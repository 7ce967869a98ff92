package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"echothoughts.com/echothoughts/logging"
	"echothoughts.com/echothoughts/models"
	"echothoughts.com/echothoughts/render"
	"echothoughts.com/echothoughts/session"
)

// Home renders the landing page with two featured posts.
func Home(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := session.CurrentUser(db, r)
		if err != nil {
			logging.L.Error().Err(err).Msg("load current user")
		}

		// Featured keeps the historical ascending sort by like count; see
		// DESIGN.md before changing the direction.
		rows, err := db.Query(`SELECT p.id, p.title, p.content, p.slug,
            p.author_id, p.created_at, u.username, COUNT(l.user_id) AS like_count
            FROM posts p
            JOIN users u ON p.author_id = u.id
            LEFT JOIN likes l ON l.post_id = p.id
            GROUP BY p.id, u.username
            ORDER BY like_count ASC, p.id ASC
            LIMIT 2`)
		if err != nil {
			http.Error(w, "Database query failed", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("Home query")
			return
		}
		defer rows.Close()

		var posts []models.FeaturedPost
		for rows.Next() {
			var p models.FeaturedPost
			if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.Slug,
				&p.AuthorID, &p.CreatedAt, &p.Username, &p.LikeCount); err != nil {
				http.Error(w, "Error scanning posts", http.StatusInternalServerError)
				logging.L.Error().Err(err).Msg("Home scan")
				return
			}
			posts = append(posts, p)
		}
		if err := rows.Err(); err != nil {
			http.Error(w, "Error iterating posts", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("Home rows")
			return
		}

		render.Page(w, r, "home.html", user, map[string]any{"Posts": posts})
	}
}

func About(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := session.CurrentUser(db, r)
		if err != nil {
			logging.L.Error().Err(err).Msg("load current user")
		}
		render.Page(w, r, "about.html", user, nil)
	}
}

func validateContact(name, email, phone, content string) error {
	if len(name) < 2 || len(email) < 3 || len(phone) < 10 || len(content) < 2 {
		return models.ErrValidation
	}
	return nil
}

// Contact serves the contact form and archives valid submissions.
func Contact(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := session.CurrentUser(db, r)
		if err != nil {
			logging.L.Error().Err(err).Msg("load current user")
		}

		if r.Method == http.MethodPost {
			name := r.PostFormValue("name")
			email := r.PostFormValue("email")
			phone := r.PostFormValue("phone")
			content := r.PostFormValue("content")

			if err := validateContact(name, email, phone, content); err != nil {
				session.AddFlash(w, r, session.LevelError, "Please fill the form correctly.")
				logging.L.Warn().Str("name", name).Msg("invalid contact submission")
			} else if _, err := db.Exec(`INSERT INTO contacts (name, email, phone, content, created_at)
                VALUES ($1, $2, $3, $4, NOW())`, name, email, phone, content); err != nil {
				http.Error(w, "Failed to save message", http.StatusInternalServerError)
				logging.L.Error().Err(err).Msg("Contact insert")
				return
			} else {
				session.AddFlash(w, r, session.LevelSuccess, "Your message has been sent successfully.")
				logging.L.Info().Str("name", name).Str("email", email).Msg("contact form saved")
			}
		}

		render.Page(w, r, "contact.html", user, nil)
	}
}

// Search matches the query as a case-insensitive substring of a post's
// title, content, or author username. Queries over 78 characters short out
// to an empty result set.
func Search(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")

		user, err := session.CurrentUser(db, r)
		if err != nil {
			logging.L.Error().Err(err).Msg("load current user")
		}

		var posts []models.PostWithAuthor
		if len(query) <= 78 {
			rows, err := db.Query(`SELECT DISTINCT p.id, p.title, p.content,
                p.slug, p.author_id, p.created_at, u.username
                FROM posts p
                JOIN users u ON p.author_id = u.id
                WHERE p.title ILIKE $1 OR p.content ILIKE $1 OR u.username ILIKE $1
                ORDER BY p.id ASC`, "%"+query+"%")
			if err != nil {
				http.Error(w, "Database search failed", http.StatusInternalServerError)
				logging.L.Error().Err(err).Msg("Search query")
				return
			}
			defer rows.Close()

			for rows.Next() {
				var p models.PostWithAuthor
				if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.Slug,
					&p.AuthorID, &p.CreatedAt, &p.Username); err != nil {
					http.Error(w, "Error scanning search results", http.StatusInternalServerError)
					logging.L.Error().Err(err).Msg("Search scan")
					return
				}
				posts = append(posts, p)
			}
			if err := rows.Err(); err != nil {
				http.Error(w, "Error iterating search results", http.StatusInternalServerError)
				logging.L.Error().Err(err).Msg("Search rows")
				return
			}
		}

		if len(posts) == 0 {
			session.AddFlash(w, r, session.LevelWarning, "No search results found. Please refine your query.")
			logging.L.Warn().Str("query", query).Msg("no search results")
		}

		render.Page(w, r, "search.html", user, map[string]any{
			"Posts": posts,
			"Query": query,
		})
	}
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// SignUp creates an account. Every failure redirects home with an error
// flash and no field retention.
func SignUp(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.PostFormValue("username")
		email := r.PostFormValue("email")
		fname := r.PostFormValue("fname")
		lname := r.PostFormValue("lname")
		pass1 := r.PostFormValue("pass1")
		pass2 := r.PostFormValue("pass2")

		logging.L.Info().Str("username", username).Msg("sign up attempt")

		if len(username) > 10 {
			session.AddFlash(w, r, session.LevelError, "Your username must be under 10 characters.")
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		if !isAlphanumeric(username) {
			session.AddFlash(w, r, session.LevelError, "Usernames may only contain letters and numbers.")
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		if pass1 != pass2 {
			session.AddFlash(w, r, session.LevelError, "Passwords do not match.")
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(pass1), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "Failed to hash password", http.StatusInternalServerError)
			return
		}

		displayName := strings.TrimSpace(fname + " " + lname)
		if displayName == "" {
			displayName = username
		}

		_, err = db.Exec(`INSERT INTO users (username, email, password,
            first_name, last_name, display_name, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
			username, email, string(hashed), fname, lname, displayName)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				session.AddFlash(w, r, session.LevelError, "Could not create your account. Please try a different username.")
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}
			http.Error(w, "Failed to create user", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("SignUp insert")
			return
		}

		logging.L.Info().Str("username", username).Msg("user created")
		session.AddFlash(w, r, session.LevelSuccess, "Your EchoThoughts account has been successfully created.")
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// Login authenticates and starts a session. Unknown users and wrong
// passwords share one generic message so accounts cannot be enumerated.
func Login(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.PostFormValue("loginusername")
		password := r.PostFormValue("loginpassword")

		logging.L.Info().Str("username", username).Msg("login attempt")

		fail := func() {
			session.AddFlash(w, r, session.LevelError, "Invalid credentials! Please try again.")
			http.Redirect(w, r, "/", http.StatusFound)
		}

		var id int
		var hashed string
		err := db.QueryRow(`SELECT id, password FROM users WHERE username = $1`,
			username).Scan(&id, &hashed)
		if err == sql.ErrNoRows {
			fail()
			return
		}
		if err != nil {
			http.Error(w, "Database query failed", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("Login query")
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) != nil {
			fail()
			return
		}

		if err := session.SignIn(w, r, id); err != nil {
			http.Error(w, "Failed to start session", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("Login session")
			return
		}

		logging.L.Info().Str("username", username).Msg("user logged in")
		session.AddFlash(w, r, session.LevelSuccess, "Successfully logged in.")
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

func Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := session.SignOut(w, r); err != nil {
			logging.L.Error().Err(err).Msg("Logout session")
		}
		session.AddFlash(w, r, session.LevelSuccess, "Successfully logged out.")
		http.Redirect(w, r, "/", http.StatusFound)
	}
}
