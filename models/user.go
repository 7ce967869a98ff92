package models

import "time"

type User struct {
	ID          int
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	DisplayName string
	CreatedAt   time.Time
}
