package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"ballotbox/internal/audit"
	id "ballotbox/pkg/domain"
)

// Postgres persists audit events. Rows are never updated or deleted by the
// application.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Append(ctx context.Context, event audit.Event) error {
	oldValues, err := marshalValues(event.OldValues)
	if err != nil {
		return err
	}
	newValues, err := marshalValues(event.NewValues)
	if err != nil {
		return err
	}

	var actorID *uuid.UUID
	if event.ActorID != nil {
		actor := uuid.UUID(*event.ActorID)
		actorID = &actor
	}

	query := `
		INSERT INTO audit_events (id, actor_id, action, entity_type, entity_id,
			old_values, new_values, ip_address, user_agent, request_id, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		actorID,
		event.Action,
		event.EntityType,
		event.EntityID,
		oldValues,
		newValues,
		event.Origin.IP,
		event.Origin.UserAgent,
		event.Origin.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Postgres) ListFiltered(ctx context.Context, filter audit.Filter) ([]audit.Event, int, error) {
	where := " WHERE TRUE"
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ActorID != nil {
		where += " AND actor_id = " + arg(uuid.UUID(*filter.ActorID))
	}
	if filter.Action != "" {
		where += " AND action ILIKE " + arg("%"+filter.Action+"%")
	}
	if filter.From != nil {
		where += " AND created_at >= " + arg(*filter.From)
	}
	if filter.To != nil {
		where += " AND created_at <= " + arg(*filter.To)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}

	query := `
		SELECT id, actor_id, action, entity_type, COALESCE(entity_id, ''),
			old_values, new_values, COALESCE(ip_address, ''),
			COALESCE(user_agent, ''), COALESCE(request_id, ''), created_at
		FROM audit_events` + where + " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event     audit.Event
			actorID   *uuid.UUID
			oldValues []byte
			newValues []byte
		)
		err := rows.Scan(
			&event.ID,
			&actorID,
			&event.Action,
			&event.EntityType,
			&event.EntityID,
			&oldValues,
			&newValues,
			&event.Origin.IP,
			&event.Origin.UserAgent,
			&event.Origin.RequestID,
			&event.Timestamp,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan audit event: %w", err)
		}
		if actorID != nil {
			actor := id.VoterID(*actorID)
			event.ActorID = &actor
		}
		if event.OldValues, err = unmarshalValues(oldValues); err != nil {
			return nil, 0, err
		}
		if event.NewValues, err = unmarshalValues(newValues); err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, total, nil
}

func marshalValues(values map[string]any) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("marshal audit values: %w", err)
	}
	return payload, nil
}

func unmarshalValues(payload []byte) (map[string]any, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var values map[string]any
	if err := json.Unmarshal(payload, &values); err != nil {
		return nil, fmt.Errorf("unmarshal audit values: %w", err)
	}
	return values, nil
}
