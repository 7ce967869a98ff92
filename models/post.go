package models

import "time"

type Post struct {
	ID        int
	Title     string
	Content   string
	Slug      string
	AuthorID  int
	CreatedAt time.Time
}

type PostWithAuthor struct {
	Post
	Username string
}

// FeaturedPost carries the like count needed by the landing page.
type FeaturedPost struct {
	PostWithAuthor
	LikeCount int
}
