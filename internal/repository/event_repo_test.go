package repository

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"dynamic_power/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestAppend_Success_WithDefaults(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewEventSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), models.EventProfileApplied, "Applied profile balanced", `{"profile":"balanced"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Append(testCtx(t), models.PowerEvent{
		Type:        "  profile_applied ",
		Description: "Applied profile balanced",
		Metadata:    map[string]any{"profile": "balanced"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestAppend_NilMetadataStoresNull(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.FixedZone("CET", 3600))
	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs("id-1", "2025-03-01 07:00:00", models.EventGraceEnded, "grace over", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewEventSQLite(db).Append(testCtx(t), models.PowerEvent{
		EventID:     "id-1",
		OccurredAt:  at,
		Type:        models.EventGraceEnded,
		Description: "grace over",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestAppend_DBError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO power_events").WillReturnError(errors.New("down"))

	err = NewEventSQLite(db).Append(testCtx(t), models.PowerEvent{Type: "x", Description: "x"})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected error, got %v", err)
	}
}

func TestList_NoFilters_And_MetadataParsing(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	js, _ := json.Marshal(map[string]any{"profile": "powersave"})

	rows := sqlmock.NewRows([]string{"id", "occurred_at", "type", "message", "meta"}).
		AddRow("1", now, models.EventProfileApplied, "m1", string(js)).
		AddRow("2", now.Add(time.Hour), models.EventGraceEnded, "m2", nil).
		AddRow("3", now.Add(2*time.Hour), models.EventKnobError, "m3", "not json")

	mock.ExpectQuery(regexp.QuoteMeta(selectEventSQL + ` ORDER BY occurred_at ASC`)).WillReturnRows(rows)

	got, err := NewEventSQLite(db).List(testCtx(t), EventQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3, got %d", len(got))
	}
	b1, _ := json.Marshal(got[0].Metadata)
	if string(b1) != string(js) {
		t.Fatalf("metadata mismatch: %s vs %s", b1, js)
	}
	if got[1].Metadata != nil {
		t.Fatalf("expected nil meta, got %#v", got[1].Metadata)
	}
	if got[2].Metadata != "not json" {
		t.Fatalf("malformed meta should be kept raw, got %#v", got[2].Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_WithFilters(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	from := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	query := selectEventSQL + ` WHERE occurred_at >= ? AND occurred_at <= ? AND type = ? ORDER BY occurred_at ASC`
	rows := sqlmock.NewRows([]string{"id", "occurred_at", "type", "message", "meta"}).
		AddRow("2", from, models.EventPowerSource, "b", nil)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("2025-01-01 11:00:00", "2025-01-01 12:00:00", models.EventPowerSource).
		WillReturnRows(rows)

	got, err := NewEventSQLite(db).List(testCtx(t), EventQuery{From: from, To: to, Type: " power_source "})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].EventID != "2" {
		t.Fatalf("unexpected results: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_LimitKeepsNewestOldestFirst(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	query := selectEventSQL + ` WHERE type = ? ORDER BY occurred_at DESC LIMIT ?`
	rows := sqlmock.NewRows([]string{"id", "occurred_at", "type", "message", "meta"}).
		AddRow("3", base.Add(2*time.Minute), models.EventOverride, "c", nil).
		AddRow("2", base.Add(time.Minute), models.EventOverride, "b", nil)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(models.EventOverride, 2).
		WillReturnRows(rows)

	got, err := NewEventSQLite(db).List(testCtx(t), EventQuery{Type: models.EventOverride, Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].EventID != "2" || got[1].EventID != "3" {
		t.Fatalf("expected oldest first [2 3], got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_ScanError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"id", "occurred_at", "type", "message", "meta"}).
		AddRow("x", 123, "INFO", "msg", nil)
	mock.ExpectQuery(regexp.QuoteMeta(selectEventSQL)).WillReturnRows(rows)

	if _, err := NewEventSQLite(db).List(testCtx(t), EventQuery{}); err == nil {
		t.Fatalf("expected scan error, got nil")
	}
}
