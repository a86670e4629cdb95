package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Repository persists identities as whole documents.
// Save replaces the stored record atomically; concurrent writers race and the last one wins.
type Repository interface {
	Create(ctx context.Context, ident *Identity) error
	GetByID(ctx context.Context, id uuid.UUID) (*Identity, error)
	GetByEmail(ctx context.Context, email string) (*Identity, error)
	Save(ctx context.Context, ident *Identity) error
}

// InMemoryRepository keeps identities in process memory, used for tests and local runs
type InMemoryRepository struct {
	mu         sync.RWMutex
	identities map[uuid.UUID]*Identity
	byEmail    map[string]uuid.UUID
}

// NewInMemoryRepository creates an empty in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		identities: make(map[uuid.UUID]*Identity),
		byEmail:    make(map[string]uuid.UUID),
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, ident *Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := NormalizeEmail(ident.Email)
	if _, exists := r.byEmail[email]; exists {
		return ErrEmailTaken
	}
	ident.Email = email
	r.identities[ident.ID] = ident.Clone()
	r.byEmail[email] = ident.ID
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ident, ok := r.identities[id]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	return ident.Clone(), nil
}

func (r *InMemoryRepository) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	return r.identities[id].Clone(), nil
}

func (r *InMemoryRepository) Save(ctx context.Context, ident *Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.identities[ident.ID]
	if !ok {
		return ErrIdentityNotFound
	}
	email := NormalizeEmail(ident.Email)
	if email != existing.Email {
		if _, taken := r.byEmail[email]; taken {
			return ErrEmailTaken
		}
		delete(r.byEmail, existing.Email)
		r.byEmail[email] = ident.ID
	}
	ident.Email = email
	r.identities[ident.ID] = ident.Clone()
	return nil
}
