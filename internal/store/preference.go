package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/crosspost-dev/crosspost/internal/domain"
)

const preferenceKey = "preference"

// PreferenceStore implements domain.PreferenceStore: an explicit get/set/
// subscribe object owned by the composition root, persisted in sqlite.
type PreferenceStore struct {
	db       *sql.DB
	fallback domain.Preference

	mu     sync.Mutex
	nextID int
	subs   map[int]func(domain.Preference)
}

// Preferences returns the store's PreferenceStore view. fallback is returned
// (and never persisted) until the first Set.
func (s *Store) Preferences(fallback domain.Preference) *PreferenceStore {
	return &PreferenceStore{
		db:       s.db,
		fallback: fallback,
		subs:     make(map[int]func(domain.Preference)),
	}
}

// Get returns the stored preference, or the fallback if none has been saved.
func (p *PreferenceStore) Get(ctx context.Context) (domain.Preference, error) {
	var payload string
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE key = ?`, preferenceKey,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return p.fallback, nil
	}
	if err != nil {
		return p.fallback, fmt.Errorf("read preference: %w", err)
	}

	var pref domain.Preference
	if err := json.Unmarshal([]byte(payload), &pref); err != nil {
		return p.fallback, fmt.Errorf("unmarshal preference: %w", err)
	}
	return pref, nil
}

// Set persists the preference and notifies subscribers.
func (p *PreferenceStore) Set(ctx context.Context, pref domain.Preference) error {
	payload, err := json.Marshal(pref)
	if err != nil {
		return fmt.Errorf("marshal preference: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		preferenceKey, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save preference: %w", err)
	}

	p.mu.Lock()
	subs := make([]func(domain.Preference), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(pref)
	}
	return nil
}

// Subscribe registers fn to run after every successful Set. The returned
// function cancels the subscription.
func (p *PreferenceStore) Subscribe(fn func(domain.Preference)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}
