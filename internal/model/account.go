package model

import (
	"fmt"
	"time"
)

// Account is one farmed identity. Credential is sent verbatim to the game API
// and must never appear in logs; use Label instead.
type Account struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Credential string    `json:"-"`
	Line       int       `json:"line"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AccountLabel builds a display name from the account's line in the list
// file and the tail of its credential.
func AccountLabel(line int, credential string) string {
	tail := credential
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	return fmt.Sprintf("#%d …%s", line, tail)
}
