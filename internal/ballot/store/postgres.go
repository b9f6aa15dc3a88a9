package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"ballotbox/internal/ballot/models"
	"ballotbox/internal/platform/postgres"
	id "ballotbox/pkg/domain"
	"ballotbox/pkg/platform/sentinel"
	txcontext "ballotbox/pkg/platform/tx"
)

// Postgres persists ballots. The schema's UNIQUE (voter_id, election_id,
// position) constraint is the duplicate-vote backstop; its 23505 becomes
// sentinel.ErrConflict.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Append(ctx context.Context, ballot *models.Ballot) error {
	query := `
		INSERT INTO ballots (id, voter_id, election_id, candidate_id, position, cast_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := txcontext.QuerierFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(ballot.ID),
		uuid.UUID(ballot.VoterID),
		uuid.UUID(ballot.ElectionID),
		uuid.UUID(ballot.CandidateID),
		ballot.Position,
		ballot.CastAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert ballot: %w", err)
	}
	return nil
}

func (s *Postgres) HasVoted(ctx context.Context, voterID id.VoterID, electionID id.ElectionID, position string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM ballots
			WHERE voter_id = $1 AND election_id = $2 AND position = $3
		)
	`
	var voted bool
	err := txcontext.QuerierFor(ctx, s.db).
		QueryRowContext(ctx, query, uuid.UUID(voterID), uuid.UUID(electionID), position).
		Scan(&voted)
	if err != nil {
		return false, fmt.Errorf("query has voted: %w", err)
	}
	return voted, nil
}

func (s *Postgres) ListByVoter(ctx context.Context, voterID id.VoterID) ([]*models.Ballot, error) {
	query := `
		SELECT id, voter_id, election_id, candidate_id, position, cast_at
		FROM ballots WHERE voter_id = $1 ORDER BY cast_at
	`
	rows, err := txcontext.QuerierFor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(voterID))
	if err != nil {
		return nil, fmt.Errorf("query ballots: %w", err)
	}
	defer rows.Close()

	var ballots []*models.Ballot
	for rows.Next() {
		var (
			ballot             models.Ballot
			bid, vid, eid, cid uuid.UUID
		)
		if err := rows.Scan(&bid, &vid, &eid, &cid, &ballot.Position, &ballot.CastAt); err != nil {
			return nil, fmt.Errorf("scan ballot: %w", err)
		}
		ballot.ID = id.BallotID(bid)
		ballot.VoterID = id.VoterID(vid)
		ballot.ElectionID = id.ElectionID(eid)
		ballot.CandidateID = id.CandidateID(cid)
		ballots = append(ballots, &ballot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ballots: %w", err)
	}
	return ballots, nil
}

func (s *Postgres) CountByCandidate(ctx context.Context, candidateID id.CandidateID) (int, error) {
	var count int
	err := txcontext.QuerierFor(ctx, s.db).
		QueryRowContext(ctx, `SELECT COUNT(*) FROM ballots WHERE candidate_id = $1`, uuid.UUID(candidateID)).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count ballots: %w", err)
	}
	return count, nil
}

func (s *Postgres) DeleteByCandidate(ctx context.Context, candidateID id.CandidateID) (int, error) {
	return s.deleteWhere(ctx, `DELETE FROM ballots WHERE candidate_id = $1`, uuid.UUID(candidateID))
}

func (s *Postgres) DeleteByElection(ctx context.Context, electionID id.ElectionID) (int, error) {
	return s.deleteWhere(ctx, `DELETE FROM ballots WHERE election_id = $1`, uuid.UUID(electionID))
}

func (s *Postgres) DeleteByVoter(ctx context.Context, voterID id.VoterID) (int, error) {
	return s.deleteWhere(ctx, `DELETE FROM ballots WHERE voter_id = $1`, uuid.UUID(voterID))
}

func (s *Postgres) deleteWhere(ctx context.Context, query string, arg any) (int, error) {
	result, err := txcontext.QuerierFor(ctx, s.db).ExecContext(ctx, query, arg)
	if err != nil {
		return 0, fmt.Errorf("delete ballots: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete ballots rows affected: %w", err)
	}
	return int(rows), nil
}
