package grievance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"thittam.org/internal/roadmap"
)

// Store persists filed grievances.
type Store interface {
	Save(ctx context.Context, g Grievance) error
	Get(ctx context.Context, trackingID string) (Grievance, error)
	List(ctx context.Context, session string) ([]Grievance, error)
}

type InMemory struct {
	mu   sync.RWMutex
	byID map[string]Grievance
}

var _ Store = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[string]Grievance)}
}

func (s *InMemory) Save(_ context.Context, g Grievance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[g.TrackingID] = g
	return nil
}

func (s *InMemory) Get(_ context.Context, trackingID string) (Grievance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.byID[trackingID]
	if !ok {
		return Grievance{}, ErrNotFound
	}
	return g, nil
}

func (s *InMemory) List(_ context.Context, session string) ([]Grievance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Grievance{}
	for _, g := range s.byID {
		if g.Session == session {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// PGStore keeps grievances in the grievances table. Only the current stage
// index is stored; the steps are always Stages.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore { return &PGStore{db: db} }

func (s *PGStore) Save(ctx context.Context, g Grievance) error {
	_, err := s.db.ExecContext(ctx, `
		insert into grievances(id, tracking_id, session_id, description, department,
			formal_summary, requested_action, urgency, current_stage, filed_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		g.ID, g.TrackingID, g.Session, g.Description, g.Analysis.Department,
		g.Analysis.FormalSummary, g.Analysis.RequestedAction, g.Analysis.Urgency,
		g.Roadmap.Current, g.FiledAt)
	if err != nil {
		return fmt.Errorf("insert grievance: %w", err)
	}
	return nil
}

const selectGrievance = `
	select id, tracking_id, session_id, description, department,
		formal_summary, requested_action, urgency, current_stage, filed_at
	from grievances`

type scanner interface {
	Scan(dest ...any) error
}

func scanGrievance(row scanner) (Grievance, error) {
	var (
		g       Grievance
		current int
		filed   time.Time
	)
	err := row.Scan(&g.ID, &g.TrackingID, &g.Session, &g.Description, &g.Analysis.Department,
		&g.Analysis.FormalSummary, &g.Analysis.RequestedAction, &g.Analysis.Urgency, &current, &filed)
	if err != nil {
		return Grievance{}, err
	}
	rm, err := roadmap.New(Stages, current)
	if err != nil {
		return Grievance{}, err
	}
	g.Roadmap = rm
	g.FiledAt = filed.UTC()
	return g, nil
}

func (s *PGStore) Get(ctx context.Context, trackingID string) (Grievance, error) {
	g, err := scanGrievance(s.db.QueryRowContext(ctx, selectGrievance+` where tracking_id = $1`, trackingID))
	if errors.Is(err, sql.ErrNoRows) {
		return Grievance{}, ErrNotFound
	}
	if err != nil {
		return Grievance{}, fmt.Errorf("load grievance: %w", err)
	}
	return g, nil
}

func (s *PGStore) List(ctx context.Context, session string) ([]Grievance, error) {
	rows, err := s.db.QueryContext(ctx, selectGrievance+` where session_id = $1 order by filed_at desc`, session)
	if err != nil {
		return nil, fmt.Errorf("list grievances: %w", err)
	}
	defer rows.Close()

	out := []Grievance{}
	for rows.Next() {
		g, err := scanGrievance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
