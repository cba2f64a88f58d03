package model

import "time"

// User is a minimal account record. The full auth surface (signup,
// password handling, OAuth) lives outside this service; the realtime
// core only needs identity and email for webhook assignee resolution.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
