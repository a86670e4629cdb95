package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const selectIdentity = `
	SELECT id, email, password_hash, name, is_verified, verified_at,
	       verification_token, verification_token_expires, verification_sent_at,
	       purchased_courses, completed_courses, access_tokens, access_logs,
	       created_at, updated_at
	FROM identities
`

// PostgresRepository stores identities in PostgreSQL, with token collections as JSONB
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a repository backed by pool
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, ident *Identity) error {
	ident.Email = NormalizeEmail(ident.Email)
	tokens, logs, err := encodeCollections(ident)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO identities (
			id, email, password_hash, name, is_verified, verified_at,
			verification_token, verification_token_expires, verification_sent_at,
			purchased_courses, completed_courses, access_tokens, access_logs,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = r.db.Exec(ctx, query,
		ident.ID, ident.Email, ident.PasswordHash, ident.Name, ident.IsVerified, ident.VerifiedAt,
		nullableString(ident.VerificationToken), ident.VerificationTokenExpires, ident.VerificationSentAt,
		nonNil(ident.PurchasedCourses), nonNil(ident.CompletedCourses), tokens, logs,
		ident.CreatedAt, ident.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert identity: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	return r.getOne(ctx, selectIdentity+" WHERE id = $1", id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	return r.getOne(ctx, selectIdentity+" WHERE email = $1", NormalizeEmail(email))
}

func (r *PostgresRepository) Save(ctx context.Context, ident *Identity) error {
	ident.Email = NormalizeEmail(ident.Email)
	tokens, logs, err := encodeCollections(ident)
	if err != nil {
		return err
	}

	query := `
		UPDATE identities SET
			email = $2, password_hash = $3, name = $4, is_verified = $5, verified_at = $6,
			verification_token = $7, verification_token_expires = $8, verification_sent_at = $9,
			purchased_courses = $10, completed_courses = $11, access_tokens = $12, access_logs = $13,
			updated_at = $14
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		ident.ID, ident.Email, ident.PasswordHash, ident.Name, ident.IsVerified, ident.VerifiedAt,
		nullableString(ident.VerificationToken), ident.VerificationTokenExpires, ident.VerificationSentAt,
		nonNil(ident.PurchasedCourses), nonNil(ident.CompletedCourses), tokens, logs,
		ident.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to update identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*Identity, error) {
	var (
		ident             Identity
		verificationToken *string
		tokens, logs      []byte
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&ident.ID,
		&ident.Email,
		&ident.PasswordHash,
		&ident.Name,
		&ident.IsVerified,
		&ident.VerifiedAt,
		&verificationToken,
		&ident.VerificationTokenExpires,
		&ident.VerificationSentAt,
		&ident.PurchasedCourses,
		&ident.CompletedCourses,
		&tokens,
		&logs,
		&ident.CreatedAt,
		&ident.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to query identity: %w", err)
	}

	if verificationToken != nil {
		ident.VerificationToken = *verificationToken
	}
	if err := json.Unmarshal(tokens, &ident.AccessTokens); err != nil {
		return nil, fmt.Errorf("failed to decode access tokens: %w", err)
	}
	if err := json.Unmarshal(logs, &ident.AccessLogs); err != nil {
		return nil, fmt.Errorf("failed to decode access logs: %w", err)
	}
	normalizeTimes(&ident)
	return &ident, nil
}

func encodeCollections(ident *Identity) ([]byte, []byte, error) {
	accessTokens := ident.AccessTokens
	if accessTokens == nil {
		accessTokens = []CourseAccessToken{}
	}
	tokens, err := json.Marshal(accessTokens)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode access tokens: %w", err)
	}

	accessLogs := ident.AccessLogs
	if accessLogs == nil {
		accessLogs = AccessLog{}
	}
	logs, err := json.Marshal(accessLogs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode access logs: %w", err)
	}
	return tokens, logs, nil
}

// normalizeTimes converts scanned timestamps to UTC
func normalizeTimes(ident *Identity) {
	ident.CreatedAt = ident.CreatedAt.UTC()
	ident.UpdatedAt = ident.UpdatedAt.UTC()
	for _, t := range []*time.Time{ident.VerifiedAt, ident.VerificationTokenExpires, ident.VerificationSentAt} {
		if t != nil {
			*t = t.UTC()
		}
	}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
