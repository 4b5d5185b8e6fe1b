// Package audit records actions taken on robots through the API and
// answers activity history queries.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the API.
const (
	ActionCommand        = "command"
	ActionSetOption      = "set_option"
	ActionDisable        = "disable"
	ActionEnable         = "enable"
	ActionSaveFavorite   = "save_favorite"
	ActionDeleteFavorite = "delete_favorite"
	ActionStartFavorite  = "start_favorite"
)

// Outcomes of a recorded action.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// timeLayout has fixed-width fractions so stored times sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Entry is a single activity record.
type Entry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	RobotID   string         `json:"robot_id"`
	Source    string         `json:"source"`
	Details   map[string]any `json:"details,omitempty"`
	Outcome   string         `json:"outcome"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Action  string // optional
	RobotID string // optional
	Limit   int    // default 50, max 200
	Offset  int
}

// ListResult is one page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores and queries activity entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository keeps entries in the activity_log table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository uses an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts e. ID, CreatedAt and Outcome are filled in when empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "act-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeAccepted
	}

	var detailsJSON *string
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshalling activity details: %w", err)
		}
		s := string(b)
		detailsJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_log (id, action, robot_id, source, details, outcome, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.RobotID, e.Source, detailsJSON, e.Outcome,
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting activity entry: %w", err)
	}
	return nil
}

// List returns entries matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.RobotID != "" {
		conditions = append(conditions, "robot_id = ?")
		args = append(args, filter.RobotID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM activity_log " + where //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting activity: %w", err)
	}

	query := "SELECT id, action, robot_id, source, details, outcome, created_at FROM activity_log " + //nolint:gosec // WHERE built from parameterised conditions
		where + " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var details sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Action, &e.RobotID, &e.Source, &details, &e.Outcome, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning activity entry: %w", err)
		}
		if details.Valid && details.String != "" {
			var m map[string]any
			if json.Unmarshal([]byte(details.String), &m) == nil {
				e.Details = m
			}
		}
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing activity timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
