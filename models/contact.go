package models

import "time"

type Contact struct {
	ID        int
	Name      string
	Phone     string
	Email     string
	Content   string
	CreatedAt time.Time
}
