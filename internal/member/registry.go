// Package member owns household member lifecycle. The registry is an
// explicit store object handed to the HTTP layer by reference; nothing
// reaches it through globals, and every lookup returns an independent copy
// so callers never share mutable state with the registry.
package member

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"homeflow/internal/model"
	"homeflow/internal/policy"
	"homeflow/internal/storage"
)

var (
	ErrMemberNotFound     = errors.New("member not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const (
	storageKeyPrefix = "member:"
	storageIndexKey  = "members"
)

type Registry struct {
	logger *slog.Logger
	store  storage.Store

	mu      sync.RWMutex
	members map[uuid.UUID]*model.Member
}

// NewRegistry restores members from storage. A missing or unreadable store
// starts the registry empty; it never fails construction.
func NewRegistry(logger *slog.Logger, store storage.Store) *Registry {
	r := &Registry{
		logger:  logger.With("component", "member"),
		store:   store,
		members: make(map[uuid.UUID]*model.Member),
	}
	r.restore()
	return r
}

// record is the storage shape of a member. The API model hides the password
// hash from JSON; the stored record must keep it.
type record struct {
	model.Member
	PasswordHash string `json:"password_hash"`
}

func (r *Registry) restore() {
	raw, err := r.store.Get(storageIndexKey)
	if err != nil || raw == nil {
		if err != nil {
			r.logger.Warn("Failed to load member index", "error", err)
		}
		return
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(raw, &ids); err != nil {
		r.logger.Warn("Corrupt member index in storage", "error", err)
		return
	}
	for _, id := range ids {
		value, err := r.store.Get(storageKeyPrefix + id.String())
		if err != nil || value == nil {
			continue
		}
		var rec record
		if err := json.Unmarshal(value, &rec); err != nil {
			r.logger.Warn("Corrupt member record in storage", "id", id, "error", err)
			continue
		}
		m := rec.Member
		m.PasswordHash = rec.PasswordHash
		m.Policy = policy.Normalize(m.Policy, m.Role)
		r.members[m.ID] = &m
	}
}

func (r *Registry) persist(m *model.Member) {
	value, err := json.Marshal(record{Member: *m, PasswordHash: m.PasswordHash})
	if err != nil {
		return
	}
	if err := r.store.Put(storageKeyPrefix+m.ID.String(), value); err != nil {
		r.logger.Warn("Failed to persist member", "id", m.ID, "error", err)
	}
	r.persistIndex()
}

func (r *Registry) persistIndex() {
	ids := make([]uuid.UUID, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	value, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := r.store.Put(storageIndexKey, value); err != nil {
		r.logger.Warn("Failed to persist member index", "error", err)
	}
}

// Register creates a member with the role's default policy.
func (r *Registry) Register(name, email, password string, role model.Role) (*model.Member, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.members {
		if m.Email == email {
			return nil, ErrEmailTaken
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	m := &model.Member{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Policy:       policy.DefaultPolicy(role),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.members[m.ID] = m
	r.persist(m)
	return m.Clone(), nil
}

// Login verifies credentials and returns the matching member. Session state
// lives with the caller; the registry only answers the credential check.
func (r *Registry) Login(email, password string) (*model.Member, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.members {
		if m.Email != email {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}
		return m.Clone(), nil
	}
	return nil, ErrInvalidCredentials
}

func (r *Registry) Get(id uuid.UUID) (*model.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	if !ok {
		return nil, ErrMemberNotFound
	}
	return m.Clone(), nil
}

// List returns all members, for the admin surface.
func (r *Registry) List() []*model.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.Clone())
	}
	return out
}

// UpdatePolicy merges a partial policy update into a member's policy. The
// merge never drops permissions the patch does not mention, and the result
// is normalized so every configured area keeps an entry.
func (r *Registry) UpdatePolicy(id uuid.UUID, patch policy.Patch) (*model.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, ErrMemberNotFound
	}
	m.Policy = policy.Normalize(policy.Merge(m.Policy, patch), m.Role)
	m.UpdatedAt = time.Now()
	r.persist(m)
	return m.Clone(), nil
}

// Remove deletes a member.
func (r *Registry) Remove(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; !ok {
		return ErrMemberNotFound
	}
	delete(r.members, id)
	if err := r.store.Delete(storageKeyPrefix + id.String()); err != nil {
		r.logger.Warn("Failed to delete member record", "id", id, "error", err)
	}
	r.persistIndex()
	return nil
}
