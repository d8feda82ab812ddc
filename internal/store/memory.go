package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process account and email store. It is used by tests and
// by the process command when no database is configured.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]Account
	emails   map[string]map[string]EmailRecord

	// InsertErr, when set, is returned by every insert. Tests use it to
	// simulate persistence failures.
	InsertErr error
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]Account),
		emails:   make(map[string]map[string]EmailRecord),
	}
}

// PutAccount adds or replaces an account.
func (m *Memory) PutAccount(a Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = a
}

// GetAccount returns the account with the given id.
func (m *Memory) GetAccount(_ context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

// CreatedAt returns the account's creation time.
func (m *Memory) CreatedAt(ctx context.Context, id string) (time.Time, error) {
	a, err := m.GetAccount(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	return a.CreatedAt, nil
}

// ListMessageIDs returns the ids of all messages stored for userID.
func (m *Memory) ListMessageIDs(_ context.Context, userID string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make(map[string]struct{}, len(m.emails[userID]))
	for id := range m.emails[userID] {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// Exists reports whether the message is stored for userID.
func (m *Memory) Exists(_ context.Context, userID, messageID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.emails[userID][messageID]
	return ok, nil
}

// Store inserts rec unless a record with the same user and message id exists.
func (m *Memory) Store(_ context.Context, rec EmailRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.emails[rec.UserID][rec.MessageID]; ok {
		return false, nil
	}
	if m.InsertErr != nil {
		return false, m.InsertErr
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if m.emails[rec.UserID] == nil {
		m.emails[rec.UserID] = make(map[string]EmailRecord)
	}
	m.emails[rec.UserID][rec.MessageID] = rec
	return true, nil
}

// Records returns the records stored for userID ordered by message id.
func (m *Memory) Records(userID string) []EmailRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EmailRecord, 0, len(m.emails[userID]))
	for _, r := range m.emails[userID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out
}
