package models

import "time"

// Comment is a single entry in a post's thread. A nil ParentID marks a
// top-level comment; otherwise the comment is a reply to ParentID.
type Comment struct {
	ID        int
	PostID    int
	UserID    int
	ParentID  *int
	Text      string
	CreatedAt time.Time
}

type CommentWithUser struct {
	Comment
	Username    string
	DisplayName string
}
