package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"ballotbox/internal/election/models"
	id "ballotbox/pkg/domain"
	"ballotbox/pkg/platform/sentinel"
	txcontext "ballotbox/pkg/platform/tx"
)

// Postgres persists the election catalog. All statements run through the
// querier in the context so admin cascades and tally increments share one
// transaction.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreateElection(ctx context.Context, election *models.Election) error {
	query := `
		INSERT INTO elections (id, name, description, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := txcontext.QuerierFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(election.ID),
		election.Name,
		election.Description,
		election.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert election: %w", err)
	}
	return nil
}

func (s *Postgres) GetElection(ctx context.Context, electionID id.ElectionID) (*models.Election, error) {
	query := `SELECT id, name, description, created_at FROM elections WHERE id = $1`
	row := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(electionID))

	var (
		election models.Election
		eid      uuid.UUID
	)
	if err := row.Scan(&eid, &election.Name, &election.Description, &election.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan election: %w", err)
	}
	election.ID = id.ElectionID(eid)

	candidates, err := s.ListCandidates(ctx, election.ID)
	if err != nil {
		return nil, err
	}
	election.Candidates = candidates
	return &election, nil
}

func (s *Postgres) ListElections(ctx context.Context) ([]*models.Election, error) {
	query := `SELECT id, name, description, created_at FROM elections ORDER BY created_at`
	rows, err := txcontext.QuerierFor(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query elections: %w", err)
	}
	defer rows.Close()

	var elections []*models.Election
	for rows.Next() {
		var (
			election models.Election
			eid      uuid.UUID
		)
		if err := rows.Scan(&eid, &election.Name, &election.Description, &election.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan election: %w", err)
		}
		election.ID = id.ElectionID(eid)
		elections = append(elections, &election)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate elections: %w", err)
	}

	for _, election := range elections {
		candidates, err := s.ListCandidates(ctx, election.ID)
		if err != nil {
			return nil, err
		}
		election.Candidates = candidates
	}
	return elections, nil
}

func (s *Postgres) DeleteElection(ctx context.Context, electionID id.ElectionID) error {
	return s.execExpectingRow(ctx, `DELETE FROM elections WHERE id = $1`, uuid.UUID(electionID))
}

func (s *Postgres) AddCandidate(ctx context.Context, candidate *models.Candidate) error {
	query := `
		INSERT INTO candidates (id, election_id, name, party, position, votes_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := txcontext.QuerierFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(candidate.ID),
		uuid.UUID(candidate.ElectionID),
		candidate.Name,
		candidate.Party,
		candidate.Position,
		candidate.Tally,
		candidate.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

const candidateColumns = `id, election_id, name, party, position, votes_count, created_at`

func (s *Postgres) GetCandidate(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE id = $1`
	row := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(candidateID))
	candidate, err := scanCandidate(row)
	if err != nil {
		return nil, err
	}
	return candidate, nil
}

func (s *Postgres) ListCandidates(ctx context.Context, electionID id.ElectionID) ([]*models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE election_id = $1 ORDER BY position, name`
	rows, err := txcontext.QuerierFor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(electionID))
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*models.Candidate
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return candidates, nil
}

func (s *Postgres) DeleteCandidate(ctx context.Context, candidateID id.CandidateID) error {
	return s.execExpectingRow(ctx, `DELETE FROM candidates WHERE id = $1`, uuid.UUID(candidateID))
}

func (s *Postgres) DeleteCandidatesByElection(ctx context.Context, electionID id.ElectionID) error {
	_, err := txcontext.QuerierFor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM candidates WHERE election_id = $1`, uuid.UUID(electionID))
	if err != nil {
		return fmt.Errorf("delete candidates by election: %w", err)
	}
	return nil
}

// IncrementTally is a single atomic UPDATE so concurrent casts never lose
// increments.
func (s *Postgres) IncrementTally(ctx context.Context, candidateID id.CandidateID) error {
	query := `UPDATE candidates SET votes_count = votes_count + 1 WHERE id = $1`
	return s.execExpectingRow(ctx, query, uuid.UUID(candidateID))
}

func (s *Postgres) DecrementTally(ctx context.Context, candidateID id.CandidateID, n int) error {
	query := `UPDATE candidates SET votes_count = votes_count - $2 WHERE id = $1`
	return s.execExpectingRow(ctx, query, uuid.UUID(candidateID), n)
}

func (s *Postgres) execExpectingRow(ctx context.Context, query string, args ...any) error {
	result, err := txcontext.QuerierFor(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec catalog mutation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("catalog mutation rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (*models.Candidate, error) {
	var (
		candidate models.Candidate
		cid, eid  uuid.UUID
	)
	err := row.Scan(
		&cid,
		&eid,
		&candidate.Name,
		&candidate.Party,
		&candidate.Position,
		&candidate.Tally,
		&candidate.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan candidate: %w", err)
	}
	candidate.ID = id.CandidateID(cid)
	candidate.ElectionID = id.ElectionID(eid)
	return &candidate, nil
}
