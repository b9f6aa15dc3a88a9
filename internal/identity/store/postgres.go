package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ballotbox/internal/identity/models"
	"ballotbox/internal/platform/postgres"
	id "ballotbox/pkg/domain"
	"ballotbox/pkg/platform/sentinel"
	txcontext "ballotbox/pkg/platform/tx"
	"ballotbox/pkg/requestcontext"
)

// Postgres persists voters. Email and matric uniqueness is enforced by the
// schema; 23505 becomes sentinel.ErrConflict.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const voterColumns = `id, name, email, matric_number, password_hash, verified,
	COALESCE(verification_token, ''), role, face_descriptor,
	COALESCE(last_login_ip, ''), last_login_at, created_at`

func (s *Postgres) Create(ctx context.Context, voter *models.Voter) error {
	query := `
		INSERT INTO voters (id, name, email, matric_number, password_hash, verified,
			verification_token, role, face_descriptor, last_login_ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, NULLIF($10, ''), $11)
	`
	var descriptor any
	if voter.HasDescriptor() {
		descriptor = pq.Array(voter.FaceDescriptor)
	}
	_, err := txcontext.QuerierFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(voter.ID),
		voter.Name,
		voter.Email,
		voter.MatricNumber,
		voter.PasswordHash,
		voter.Verified,
		voter.VerificationToken,
		string(voter.Role),
		descriptor,
		voter.LastLoginIP,
		voter.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert voter: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, voterID id.VoterID) (*models.Voter, error) {
	query := `SELECT ` + voterColumns + ` FROM voters WHERE id = $1`
	return s.scanVoter(txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(voterID)))
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.Voter, error) {
	query := `SELECT ` + voterColumns + ` FROM voters WHERE LOWER(email) = LOWER($1)`
	return s.scanVoter(txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx, query, email))
}

func (s *Postgres) FindByVerificationToken(ctx context.Context, token string) (*models.Voter, error) {
	if token == "" {
		return nil, sentinel.ErrNotFound
	}
	query := `SELECT ` + voterColumns + ` FROM voters WHERE verification_token = $1`
	return s.scanVoter(txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx, query, token))
}

func (s *Postgres) MarkVerified(ctx context.Context, voterID id.VoterID) error {
	query := `UPDATE voters SET verified = TRUE, verification_token = NULL WHERE id = $1`
	return s.execExpectingRow(ctx, query, uuid.UUID(voterID))
}

func (s *Postgres) UpdateRole(ctx context.Context, voterID id.VoterID, role models.Role) error {
	query := `UPDATE voters SET role = $2 WHERE id = $1`
	return s.execExpectingRow(ctx, query, uuid.UUID(voterID), string(role))
}

func (s *Postgres) RecordLogin(ctx context.Context, voterID id.VoterID, ip string) error {
	query := `UPDATE voters SET last_login_ip = NULLIF($2, ''), last_login_at = $3 WHERE id = $1`
	return s.execExpectingRow(ctx, query, uuid.UUID(voterID), ip, requestcontext.Now(ctx))
}

func (s *Postgres) ListDescriptors(ctx context.Context) (map[id.VoterID][]float64, error) {
	query := `SELECT id, face_descriptor FROM voters WHERE face_descriptor IS NOT NULL`
	rows, err := txcontext.QuerierFor(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query descriptors: %w", err)
	}
	defer rows.Close()

	out := make(map[id.VoterID][]float64)
	for rows.Next() {
		var voterID uuid.UUID
		var descriptor pq.Float64Array
		if err := rows.Scan(&voterID, &descriptor); err != nil {
			return nil, fmt.Errorf("scan descriptor: %w", err)
		}
		out[id.VoterID(voterID)] = []float64(descriptor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate descriptors: %w", err)
	}
	return out, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Voter, error) {
	query := `SELECT ` + voterColumns + ` FROM voters ORDER BY created_at`
	rows, err := txcontext.QuerierFor(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query voters: %w", err)
	}
	defer rows.Close()

	var voters []*models.Voter
	for rows.Next() {
		voter, err := scanVoterRow(rows)
		if err != nil {
			return nil, err
		}
		voters = append(voters, voter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate voters: %w", err)
	}
	return voters, nil
}

func (s *Postgres) Delete(ctx context.Context, voterID id.VoterID) error {
	return s.execExpectingRow(ctx, `DELETE FROM voters WHERE id = $1`, uuid.UUID(voterID))
}

func (s *Postgres) execExpectingRow(ctx context.Context, query string, args ...any) error {
	result, err := txcontext.QuerierFor(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("exec voter mutation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("voter mutation rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Postgres) scanVoter(row *sql.Row) (*models.Voter, error) {
	voter, err := scanVoterRow(row)
	if err != nil {
		return nil, err
	}
	return voter, nil
}

func scanVoterRow(row rowScanner) (*models.Voter, error) {
	var (
		voter      models.Voter
		voterID    uuid.UUID
		role       string
		descriptor pq.Float64Array
	)
	err := row.Scan(
		&voterID,
		&voter.Name,
		&voter.Email,
		&voter.MatricNumber,
		&voter.PasswordHash,
		&voter.Verified,
		&voter.VerificationToken,
		&role,
		&descriptor,
		&voter.LastLoginIP,
		&voter.LastLoginAt,
		&voter.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan voter: %w", err)
	}
	voter.ID = id.VoterID(voterID)
	voter.Role = models.Role(role)
	voter.FaceDescriptor = []float64(descriptor)
	return &voter, nil
}
