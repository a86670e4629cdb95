package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const identitiesFile = "identities.json"

// FileRepository stores identities in a single JSON file under dataDir
type FileRepository struct {
	dataDir    string
	identities map[uuid.UUID]*Identity
	byEmail    map[string]uuid.UUID
	mutex      sync.RWMutex
}

type identityData struct {
	Identities []*Identity `json:"identities"`
}

// NewFileRepository creates a file-based repository, loading any existing data
func NewFileRepository(dataDir string) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileRepository{
		dataDir:    dataDir,
		identities: make(map[uuid.UUID]*Identity),
		byEmail:    make(map[string]uuid.UUID),
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

func (r *FileRepository) Create(ctx context.Context, ident *Identity) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	email := NormalizeEmail(ident.Email)
	if _, exists := r.byEmail[email]; exists {
		return ErrEmailTaken
	}
	ident.Email = email

	r.identities[ident.ID] = ident.Clone()
	r.byEmail[email] = ident.ID

	if err := r.save(); err != nil {
		delete(r.identities, ident.ID)
		delete(r.byEmail, email)
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileRepository) GetByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ident, ok := r.identities[id]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	return ident.Clone(), nil
}

func (r *FileRepository) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	return r.identities[id].Clone(), nil
}

func (r *FileRepository) Save(ctx context.Context, ident *Identity) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	previous, ok := r.identities[ident.ID]
	if !ok {
		return ErrIdentityNotFound
	}

	email := NormalizeEmail(ident.Email)
	if email != previous.Email {
		if _, taken := r.byEmail[email]; taken {
			return ErrEmailTaken
		}
	}
	ident.Email = email

	r.identities[ident.ID] = ident.Clone()
	delete(r.byEmail, previous.Email)
	r.byEmail[email] = ident.ID

	if err := r.save(); err != nil {
		r.identities[ident.ID] = previous
		delete(r.byEmail, email)
		r.byEmail[previous.Email] = ident.ID
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// load reads identities from file
func (r *FileRepository) load() error {
	filePath := filepath.Join(r.dataDir, identitiesFile)

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var stored identityData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	for _, ident := range stored.Identities {
		r.identities[ident.ID] = ident
		r.byEmail[NormalizeEmail(ident.Email)] = ident.ID
	}
	return nil
}

// save writes all identities to file atomically
func (r *FileRepository) save() error {
	identities := make([]*Identity, 0, len(r.identities))
	for _, ident := range r.identities {
		identities = append(identities, ident)
	}

	jsonData, err := json.MarshalIndent(identityData{Identities: identities}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(r.dataDir, identitiesFile+".tmp")
	if err := os.WriteFile(tempFile, jsonData, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	finalFile := filepath.Join(r.dataDir, identitiesFile)
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
