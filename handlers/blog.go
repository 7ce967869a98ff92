package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/lib/pq"

	"echothoughts.com/echothoughts/logging"
	"echothoughts.com/echothoughts/models"
	"echothoughts.com/echothoughts/render"
	"echothoughts.com/echothoughts/session"
)

func getPostBySlug(db *sql.DB, slug string) (*models.PostWithAuthor, error) {
	var p models.PostWithAuthor
	err := db.QueryRow(`SELECT p.id, p.title, p.content, p.slug, p.author_id,
        p.created_at, u.username
        FROM posts p
        JOIN users u ON p.author_id = u.id
        WHERE p.slug = $1`, slug).
		Scan(&p.ID, &p.Title, &p.Content, &p.Slug, &p.AuthorID, &p.CreatedAt, &p.Username)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func getPostByID(db *sql.DB, id int) (*models.Post, error) {
	var p models.Post
	err := db.QueryRow(`SELECT id, title, content, slug, author_id, created_at
        FROM posts WHERE id = $1`, id).
		Scan(&p.ID, &p.Title, &p.Content, &p.Slug, &p.AuthorID, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// postForOwner resolves a post and checks the actor owns it. Ownership is
// read from persisted state within the same request, never cached.
func postForOwner(db *sql.DB, id, userID int) (*models.Post, error) {
	post, err := getPostByID(db, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, models.ErrForbidden
	}
	return post, nil
}

// insertPost maps a unique-index violation on the slug to ErrDuplicateSlug so
// a create racing the existence pre-check still fails cleanly.
func insertPost(db *sql.DB, title, content, slug string, authorID int) error {
	_, err := db.Exec(`INSERT INTO posts (title, content, slug, author_id, created_at)
        VALUES ($1, $2, $3, $4, NOW())`, title, content, slug, authorID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return models.ErrDuplicateSlug
	}
	return err
}

// getThreadedComments loads a post's thread as top-level comments plus a map
// from a top-level comment's id to its replies, in posting order.
func getThreadedComments(db *sql.DB, postID int) ([]models.CommentWithUser, map[int][]models.CommentWithUser, error) {
	rows, err := db.Query(`SELECT c.id, c.post_id, c.user_id, c.parent_id,
        c.text, c.created_at, u.username, u.display_name
        FROM comments c
        JOIN users u ON c.user_id = u.id
        WHERE c.post_id = $1
        ORDER BY c.created_at ASC`, postID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var topLevel, replies []models.CommentWithUser
	for rows.Next() {
		var c models.CommentWithUser
		var parent sql.NullInt64
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &parent, &c.Text,
			&c.CreatedAt, &c.Username, &c.DisplayName); err != nil {
			return nil, nil, err
		}
		if parent.Valid {
			pid := int(parent.Int64)
			c.ParentID = &pid
			replies = append(replies, c)
		} else {
			topLevel = append(topLevel, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return topLevel, groupReplies(topLevel, replies), nil
}

// groupReplies buckets replies under their top-level parent's id. A reply
// whose parent is not in the top-level set is dropped rather than surfaced;
// comment inserts verify the parent is on the same post, so such orphans are
// unreachable in practice.
func groupReplies(topLevel, replies []models.CommentWithUser) map[int][]models.CommentWithUser {
	known := make(map[int]bool, len(topLevel))
	for _, c := range topLevel {
		known[c.ID] = true
	}

	grouped := make(map[int][]models.CommentWithUser)
	for _, r := range replies {
		if r.ParentID == nil || !known[*r.ParentID] {
			continue
		}
		grouped[*r.ParentID] = append(grouped[*r.ParentID], r)
	}
	return grouped
}

// BlogHome lists every post.
func BlogHome(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := session.CurrentUser(db, r)
		if err != nil {
			logging.L.Error().Err(err).Msg("load current user")
		}

		rows, err := db.Query(`SELECT p.id, p.title, p.content, p.slug,
            p.author_id, p.created_at, u.username
            FROM posts p
            JOIN users u ON p.author_id = u.id
            ORDER BY p.id ASC`)
		if err != nil {
			http.Error(w, "Database query failed", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("BlogHome query")
			return
		}
		defer rows.Close()

		var posts []models.PostWithAuthor
		for rows.Next() {
			var p models.PostWithAuthor
			if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.Slug,
				&p.AuthorID, &p.CreatedAt, &p.Username); err != nil {
				http.Error(w, "Error scanning posts", http.StatusInternalServerError)
				logging.L.Error().Err(err).Msg("BlogHome scan")
				return
			}
			posts = append(posts, p)
		}
		if err := rows.Err(); err != nil {
			http.Error(w, "Error iterating posts", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("BlogHome rows")
			return
		}

		render.Page(w, r, "bloghome.html", user, map[string]any{"Posts": posts})
	}
}

// BlogPost shows a single post with its comment thread and like state.
func BlogPost(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := mux.Vars(r)["slug"]

		user, err := session.CurrentUser(db, r)
		if err != nil {
			logging.L.Error().Err(err).Msg("load current user")
		}

		post, err := getPostBySlug(db, slug)
		if errors.Is(err, models.ErrNotFound) {
			render.PageStatus(w, r, http.StatusNotFound, "notfound.html", user, nil)
			return
		}
		if err != nil {
			http.Error(w, "Database query failed", http.StatusInternalServerError)
			logging.L.Error().Err(err).Str("slug", slug).Msg("BlogPost query")
			return
		}

		comments, replies, err := getThreadedComments(db, post.ID)
		if err != nil {
			http.Error(w, "Failed to fetch comments", http.StatusInternalServerError)
			logging.L.Error().Err(err).Int("post_id", post.ID).Msg("BlogPost comments")
			return
		}

		var likeCount int
		if err := db.QueryRow(`SELECT COUNT(*) FROM likes WHERE post_id = $1`,
			post.ID).Scan(&likeCount); err != nil {
			http.Error(w, "Database query failed", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("BlogPost like count")
			return
		}

		liked := false
		if user != nil {
			if err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM likes
                WHERE post_id = $1 AND user_id = $2)`,
				post.ID, user.ID).Scan(&liked); err != nil {
				logging.L.Error().Err(err).Msg("BlogPost liked lookup")
			}
		}

		render.Page(w, r, "blogpost.html", user, map[string]any{
			"Post":      post,
			"Comments":  comments,
			"Replies":   replies,
			"LikeCount": likeCount,
			"Liked":     liked,
		})
	}
}

// PostComment adds a comment, or a reply when parentSno is set.
func PostComment(db *sql.DB) AuthedHandler {
	return func(user *models.User, w http.ResponseWriter, r *http.Request) {
		text := strings.TrimSpace(r.PostFormValue("comment"))
		postSno := r.PostFormValue("postSno")
		parentSno := r.PostFormValue("parentSno")

		postID, err := strconv.Atoi(postSno)
		if err != nil {
			session.AddFlash(w, r, session.LevelError, "Invalid post.")
			http.Redirect(w, r, "/blog/", http.StatusFound)
			return
		}

		var slug string
		err = db.QueryRow(`SELECT slug FROM posts WHERE id = $1`, postID).Scan(&slug)
		if err == sql.ErrNoRows {
			session.AddFlash(w, r, session.LevelError, "Invalid post.")
			http.Redirect(w, r, "/blog/", http.StatusFound)
			return
		}
		if err != nil {
			http.Error(w, "Database query failed", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("PostComment post lookup")
			return
		}

		if text == "" {
			session.AddFlash(w, r, session.LevelError, "Please write a comment before posting.")
			http.Redirect(w, r, "/blog/"+slug, http.StatusFound)
			return
		}

		var parentID *int
		if parentSno != "" {
			id, err := strconv.Atoi(parentSno)
			if err != nil {
				session.AddFlash(w, r, session.LevelError, "Invalid parent comment.")
				http.Redirect(w, r, "/blog/"+slug, http.StatusFound)
				return
			}

			// The parent must exist on the same post.
			var exists bool
			err = db.QueryRow(`SELECT EXISTS(SELECT 1 FROM comments
                WHERE id = $1 AND post_id = $2)`, id, postID).Scan(&exists)
			if err != nil {
				http.Error(w, "Database query failed", http.StatusInternalServerError)
				logging.L.Error().Err(err).Msg("PostComment parent lookup")
				return
			}
			if !exists {
				session.AddFlash(w, r, session.LevelError, "Invalid parent comment.")
				http.Redirect(w, r, "/blog/"+slug, http.StatusFound)
				return
			}
			parentID = &id
		}

		_, err = db.Exec(`INSERT INTO comments (text, user_id, post_id, parent_id, created_at)
            VALUES ($1, $2, $3, $4, NOW())`, text, user.ID, postID, parentID)
		if err != nil {
			http.Error(w, "Failed to post comment", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("PostComment insert")
			return
		}

		if parentID != nil {
			session.AddFlash(w, r, session.LevelSuccess, "Your reply has been posted successfully.")
		} else {
			session.AddFlash(w, r, session.LevelSuccess, "Your comment has been posted successfully.")
		}
		http.Redirect(w, r, "/blog/"+slug, http.StatusFound)
	}
}

// CreatePost serves the authoring form and handles submission.
func CreatePost(db *sql.DB) AuthedHandler {
	return func(user *models.User, w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			render.Page(w, r, "createpost.html", user, map[string]any{
				"Title": "", "Content": "", "Slug": "",
			})
			return
		}

		title := strings.TrimSpace(r.PostFormValue("title"))
		content := strings.TrimSpace(r.PostFormValue("content"))
		slug := strings.TrimSpace(r.PostFormValue("slug"))

		renderForm := func() {
			render.Page(w, r, "createpost.html", user, map[string]any{
				"Title":   title,
				"Content": content,
				"Slug":    slug,
			})
		}

		if title == "" || content == "" || slug == "" {
			session.AddFlash(w, r, session.LevelError, "Please fill in the title, content and slug.")
			renderForm()
			return
		}

		var exists bool
		if err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM posts WHERE slug = $1)`,
			slug).Scan(&exists); err != nil {
			http.Error(w, "Database query failed", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("CreatePost slug check")
			return
		}
		if exists {
			session.AddFlash(w, r, session.LevelError, "A post with this slug already exists.")
			renderForm()
			return
		}

		err := insertPost(db, title, content, slug, user.ID)
		if errors.Is(err, models.ErrDuplicateSlug) {
			session.AddFlash(w, r, session.LevelError, "A post with this slug already exists.")
			renderForm()
			return
		}
		if err != nil {
			http.Error(w, "Failed to create post", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("CreatePost insert")
			return
		}

		logging.L.Info().Str("slug", slug).Int("author_id", user.ID).Msg("post created")
		session.AddFlash(w, r, session.LevelSuccess, "Your post has been published.")
		http.Redirect(w, r, "/blog/", http.StatusFound)
	}
}

// EditPost lets a post's author change its title and content.
func EditPost(db *sql.DB) AuthedHandler {
	return func(user *models.User, w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			session.AddFlash(w, r, session.LevelError, "Post not found.")
			http.Redirect(w, r, "/blog/", http.StatusFound)
			return
		}

		post, err := postForOwner(db, id, user.ID)
		if errors.Is(err, models.ErrNotFound) {
			session.AddFlash(w, r, session.LevelError, "Post not found.")
			http.Redirect(w, r, "/blog/", http.StatusFound)
			return
		}
		if errors.Is(err, models.ErrForbidden) {
			session.AddFlash(w, r, session.LevelError, "You can only edit your own posts.")
			http.Redirect(w, r, "/blog/", http.StatusFound)
			return
		}
		if err != nil {
			http.Error(w, "Database query failed", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("EditPost query")
			return
		}

		if r.Method == http.MethodGet {
			render.Page(w, r, "editpost.html", user, map[string]any{"Post": post})
			return
		}

		title := strings.TrimSpace(r.PostFormValue("title"))
		content := strings.TrimSpace(r.PostFormValue("content"))
		if title == "" || content == "" {
			session.AddFlash(w, r, session.LevelError, "Title and content cannot be empty.")
			render.Page(w, r, "editpost.html", user, map[string]any{"Post": post})
			return
		}

		if _, err := db.Exec(`UPDATE posts SET title = $1, content = $2 WHERE id = $3`,
			title, content, id); err != nil {
			http.Error(w, "Failed to update post", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("EditPost update")
			return
		}

		session.AddFlash(w, r, session.LevelSuccess, "Your post has been updated.")
		http.Redirect(w, r, "/blog/"+post.Slug, http.StatusFound)
	}
}

// DeletePost removes a post; comments and likes go with it via the schema's
// cascades.
func DeletePost(db *sql.DB) AuthedHandler {
	return func(user *models.User, w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			session.AddFlash(w, r, session.LevelError, "Post not found.")
			http.Redirect(w, r, "/blog/", http.StatusFound)
			return
		}

		if _, err := postForOwner(db, id, user.ID); err != nil {
			switch {
			case errors.Is(err, models.ErrNotFound):
				session.AddFlash(w, r, session.LevelError, "Post not found.")
				http.Redirect(w, r, "/blog/", http.StatusFound)
			case errors.Is(err, models.ErrForbidden):
				session.AddFlash(w, r, session.LevelError, "You can only delete your own posts.")
				http.Redirect(w, r, "/blog/", http.StatusFound)
			default:
				http.Error(w, "Database query failed", http.StatusInternalServerError)
				logging.L.Error().Err(err).Msg("DeletePost query")
			}
			return
		}

		if _, err := db.Exec(`DELETE FROM posts WHERE id = $1`, id); err != nil {
			http.Error(w, "Failed to delete post", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("DeletePost delete")
			return
		}

		logging.L.Info().Int("post_id", id).Int("author_id", user.ID).Msg("post deleted")
		session.AddFlash(w, r, session.LevelSuccess, "Your post has been deleted.")
		http.Redirect(w, r, "/blog/", http.StatusFound)
	}
}

// DeleteComment removes a comment its author no longer wants. The post slug
// is resolved first so there is still a detail page to return to.
func DeleteComment(db *sql.DB) AuthedHandler {
	return func(user *models.User, w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			session.AddFlash(w, r, session.LevelError, "Comment not found.")
			http.Redirect(w, r, "/blog/", http.StatusFound)
			return
		}

		var ownerID int
		var slug string
		err = db.QueryRow(`SELECT c.user_id, p.slug
            FROM comments c
            JOIN posts p ON c.post_id = p.id
            WHERE c.id = $1`, id).Scan(&ownerID, &slug)
		if err == sql.ErrNoRows {
			session.AddFlash(w, r, session.LevelError, "Comment not found.")
			http.Redirect(w, r, "/blog/", http.StatusFound)
			return
		}
		if err != nil {
			http.Error(w, "Database query failed", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("DeleteComment query")
			return
		}

		if ownerID != user.ID {
			session.AddFlash(w, r, session.LevelError, "You can only delete your own comments.")
			http.Redirect(w, r, "/blog/"+slug, http.StatusFound)
			return
		}

		if _, err := db.Exec(`DELETE FROM comments WHERE id = $1`, id); err != nil {
			http.Error(w, "Failed to delete comment", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("DeleteComment delete")
			return
		}

		session.AddFlash(w, r, session.LevelSuccess, "Your comment has been deleted.")
		http.Redirect(w, r, "/blog/"+slug, http.StatusFound)
	}
}

// LikePost toggles the actor's membership in the post's like set. The insert
// relies on the likes primary key with ON CONFLICT DO NOTHING, so two
// concurrent duplicate submissions converge instead of double-toggling.
func LikePost(db *sql.DB) AuthedHandler {
	return func(user *models.User, w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			session.AddFlash(w, r, session.LevelError, "Post not found.")
			http.Redirect(w, r, "/blog/", http.StatusFound)
			return
		}

		var slug string
		err = db.QueryRow(`SELECT slug FROM posts WHERE id = $1`, id).Scan(&slug)
		if err == sql.ErrNoRows {
			session.AddFlash(w, r, session.LevelError, "Post not found.")
			http.Redirect(w, r, "/blog/", http.StatusFound)
			return
		}
		if err != nil {
			http.Error(w, "Database query failed", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("LikePost query")
			return
		}

		res, err := db.Exec(`INSERT INTO likes (post_id, user_id) VALUES ($1, $2)
            ON CONFLICT DO NOTHING`, id, user.ID)
		if err != nil {
			http.Error(w, "Failed to like post", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("LikePost insert")
			return
		}

		inserted, err := res.RowsAffected()
		if err != nil {
			http.Error(w, "Failed to like post", http.StatusInternalServerError)
			logging.L.Error().Err(err).Msg("LikePost rows affected")
			return
		}

		if inserted == 1 {
			session.AddFlash(w, r, session.LevelSuccess, "You liked this post.")
		} else {
			// Already a member: this toggle removes the like.
			if _, err := db.Exec(`DELETE FROM likes WHERE post_id = $1 AND user_id = $2`,
				id, user.ID); err != nil {
				http.Error(w, "Failed to unlike post", http.StatusInternalServerError)
				logging.L.Error().Err(err).Msg("LikePost delete")
				return
			}
			session.AddFlash(w, r, session.LevelSuccess, "You unliked this post.")
		}

		http.Redirect(w, r, "/blog/"+slug, http.StatusFound)
	}
}
