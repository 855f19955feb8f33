// Package memory provides in-process implementations of the store
// contracts. It is intended for tests and dev environments.
package memory

import (
	"sync"
	"time"

	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
)

// Store keeps identities, vehicles, access events and alerts behind one
// lock so cross-entity reads (event -> identity summary) stay consistent.
type Store struct {
	mu sync.RWMutex

	identities map[string]*store.Identity
	byUsername map[string]string
	vehicles   map[string]*store.Vehicle // plate -> vehicle

	events      []store.AccessEvent // insertion order
	nextEventID int64

	alerts      []store.Alert
	nextAlertID int64
}

var (
	_ store.IdentityStore    = (*Store)(nil)
	_ store.AccessEventStore = (*Store)(nil)
	_ store.AlertStore       = (*Store)(nil)
)

func New() *Store {
	return &Store{
		identities:  make(map[string]*store.Identity),
		byUsername:  make(map[string]string),
		vehicles:    make(map[string]*store.Vehicle),
		nextEventID: 1,
		nextAlertID: 1,
	}
}

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func strPtr(s string) *string { return &s }
