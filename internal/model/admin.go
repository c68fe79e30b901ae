package model

import "time"

// AdminRecord grants administrative privilege to a principal.
// Its existence is the only authorization criterion; there are no levels.
type AdminRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
