package domain

import "time"

// User is a directory entry tickets can be assigned to. Only Username is
// significant to ticket rules.
type User struct {
	ID        int64
	Username  string
	Name      string
	Email     string
	CreatedAt time.Time
}
