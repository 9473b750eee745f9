// Package memory keeps every repository in process memory. It backs local
// development and tests.
package memory

import (
	"sync"

	"pathak/internal/account"
	"pathak/internal/attendance"
	"pathak/internal/parikshan"
)

// DB holds the tables shared by the repositories built from it.
type DB struct {
	mu sync.RWMutex

	users       map[string]account.User
	sessions    []attendance.Session
	records     map[string]attendance.Record
	recordOrder []string
	corrections map[string]attendance.CorrectionRequest
	firstRounds map[string]parikshan.FirstRound
	finalRounds map[string]parikshan.FinalRound
	released    bool
}

// New returns an empty database.
func New() *DB {
	return &DB{
		users:       make(map[string]account.User),
		records:     make(map[string]attendance.Record),
		corrections: make(map[string]attendance.CorrectionRequest),
		firstRounds: make(map[string]parikshan.FirstRound),
		finalRounds: make(map[string]parikshan.FinalRound),
	}
}
