package grievance

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"thittam.org/internal/advisory"
	"thittam.org/internal/roadmap"
)

const complaint = "My ration card application was rejected though my income is below the limit."

func analyst(a advisory.GrievanceAnalysis, err error) advisory.Service {
	return advisory.Func{GrievanceFn: func(context.Context, string) (advisory.GrievanceAnalysis, error) {
		return a, err
	}}
}

func TestSubmitRequiresAnalysis(t *testing.T) {
	s := NewService(advisory.Func{}, NewInMemory(), Config{})
	_, err := s.Submit(context.Background(), "S", complaint)
	require.ErrorIs(t, err, ErrNotAnalyzed)
}

func TestAnalyzeThenSubmit(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := NewInMemory()
	s := NewService(analyst(advisory.GrievanceAnalysis{
		Department:      "food & consumer protection",
		FormalSummary:   " Ration card wrongly rejected. ",
		RequestedAction: "Reconsider the application.",
		Urgency:         "HIGH",
	}, nil), store, Config{Now: func() time.Time { return now }})

	d, err := s.Analyze(ctx, "S", "  "+complaint+"  ")
	require.NoError(t, err)
	require.Equal(t, complaint, d.Description)
	require.Equal(t, "Food & Consumer Protection", d.Analysis.Department)
	require.Equal(t, "High", d.Analysis.Urgency)
	require.Equal(t, "Ration card wrongly rejected.", d.Analysis.FormalSummary)

	_, err = s.Submit(ctx, "S", "a different story")
	require.ErrorIs(t, err, ErrNotAnalyzed)

	g, err := s.Submit(ctx, "S", complaint)
	require.NoError(t, err)
	require.Regexp(t, `^GRV-TN-2026-[1-9][0-9]{4}$`, g.TrackingID)
	items := g.Roadmap.Items()
	require.Len(t, items, 4)
	require.Equal(t, []roadmap.Status{roadmap.Completed, roadmap.Current, roadmap.Upcoming, roadmap.Upcoming},
		[]roadmap.Status{items[0].Status, items[1].Status, items[2].Status, items[3].Status})

	_, ok := s.PendingDraft("S")
	require.False(t, ok)
	_, err = s.Submit(ctx, "S", "")
	require.ErrorIs(t, err, ErrNotAnalyzed)

	got, err := s.Get(ctx, "S", g.TrackingID)
	require.NoError(t, err)
	require.Equal(t, g.ID, got.ID)
	_, err = s.Get(ctx, "other", g.TrackingID)
	require.ErrorIs(t, err, ErrNotFound)

	list, err := s.List(ctx, "S")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestAnalyzeFailures(t *testing.T) {
	ctx := context.Background()
	s := NewService(analyst(advisory.GrievanceAnalysis{}, advisory.ErrUnavailable), NewInMemory(), Config{})
	_, err := s.Analyze(ctx, "S", "   ")
	require.ErrorIs(t, err, ErrInvalid)
	_, err = s.Analyze(ctx, "S", complaint)
	require.ErrorIs(t, err, ErrAdvisory)
	_, ok := s.PendingDraft("S")
	require.False(t, ok)
}

func TestUnknownUrgencyReadsAsMedium(t *testing.T) {
	a := normalise(advisory.GrievanceAnalysis{Department: "Transport", Urgency: "urgent!!"})
	require.Equal(t, "Transport", a.Department)
	require.Equal(t, "Medium", a.Urgency)
}

func TestSubmitPadHonoursContext(t *testing.T) {
	s := NewService(analyst(advisory.GrievanceAnalysis{Department: "Revenue", Urgency: "Low"}, nil), NewInMemory(), Config{Pad: time.Hour})
	_, err := s.Analyze(context.Background(), "S", complaint)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Submit(ctx, "S", "")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	_, ok := s.PendingDraft("S")
	require.True(t, ok, "draft survives a cancelled submission")
}

var columns = []string{"id", "tracking_id", "session_id", "description", "department",
	"formal_summary", "requested_action", "urgency", "current_stage", "filed_at"}

func TestDraftsExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s := NewService(analyst(advisory.GrievanceAnalysis{Department: "Revenue", Urgency: "Low"}, nil), NewInMemory(),
		Config{DraftTTL: time.Hour, Now: func() time.Time { return now }})

	_, err := s.Analyze(ctx, "old", complaint)
	require.NoError(t, err)
	now = now.Add(40 * time.Minute)
	_, err = s.Analyze(ctx, "recent", complaint)
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	_, ok := s.PendingDraft("old")
	require.False(t, ok)
	_, err = s.Submit(ctx, "old", complaint)
	require.ErrorIs(t, err, ErrNotAnalyzed)

	_, ok = s.PendingDraft("recent")
	require.True(t, ok)
	require.Equal(t, 0, s.ExpireDrafts(now))
	require.Equal(t, 1, s.ExpireDrafts(now.Add(time.Hour)))
	_, ok = s.PendingDraft("recent")
	require.False(t, ok)
}

func TestPGStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := NewPGStore(db)
	ctx := context.Background()
	filed := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	rm, _ := roadmap.New(Stages, 1)

	g := Grievance{
		ID: "01J0", TrackingID: "GRV-TN-2026-48213", Session: "S", Description: complaint,
		Analysis: advisory.GrievanceAnalysis{Department: "Revenue", FormalSummary: "sum", RequestedAction: "act", Urgency: "High"},
		Roadmap:  rm, FiledAt: filed,
	}
	mock.ExpectExec("insert into grievances").
		WithArgs("01J0", "GRV-TN-2026-48213", "S", complaint, "Revenue", "sum", "act", "High", 1, filed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Save(ctx, g))

	mock.ExpectQuery("from grievances where tracking_id").
		WithArgs("GRV-TN-2026-48213").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("01J0", "GRV-TN-2026-48213", "S", complaint, "Revenue", "sum", "act", "High", 1, filed))
	got, err := s.Get(ctx, "GRV-TN-2026-48213")
	require.NoError(t, err)
	require.Equal(t, g, got)

	mock.ExpectQuery("from grievances where tracking_id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery("from grievances where session_id").
		WithArgs("S").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("01J1", "GRV-TN-2026-11111", "S", "b", "Health", "", "", "Low", 1, filed).
			AddRow("01J0", "GRV-TN-2026-48213", "S", complaint, "Revenue", "sum", "act", "High", 1, filed))
	list, err := s.List(ctx, "S")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Health", list[0].Analysis.Department)

	mock.ExpectQuery("from grievances where tracking_id").
		WithArgs("bad").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("x", "bad", "S", "d", "Revenue", "", "", "Low", 9, filed))
	_, err = s.Get(ctx, "bad")
	require.ErrorIs(t, err, roadmap.ErrIndexOutOfRange)

	require.NoError(t, mock.ExpectationsWereMet())
}
