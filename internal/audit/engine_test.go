package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"fleet-analytics/internal/audit"
	"fleet-analytics/internal/audit/infrastructure/memory"
)

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

var testNow = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, entries ...audit.Entry) (*audit.QueryEngine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	for _, entry := range entries {
		if err := store.Append(context.Background(), entry); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	engine, err := audit.NewQueryEngine(store, fixedClock{at: testNow}, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine, store
}

func entryAt(userID, action, resource, resourceID string, age time.Duration) audit.Entry {
	return audit.Entry{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		CreatedAt:  testNow.Add(-age),
	}
}

func TestListSortsNewestFirstAndPaginates(t *testing.T) {
	engine, _ := newEngine(t,
		entryAt("u1", audit.ActionCreate, "plant", "p1", 3*time.Hour),
		entryAt("u1", audit.ActionUpdate, "plant", "p1", 2*time.Hour),
		entryAt("u2", audit.ActionDelete, "device", "d1", time.Hour),
	)

	entries, pagination, err := engine.List(context.Background(), audit.Filter{}, 1, 2, audit.SortDesc)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected page of 2, got %d", len(entries))
	}
	if entries[0].Action != audit.ActionDelete {
		t.Fatalf("expected newest entry first, got %s", entries[0].Action)
	}
	if pagination.Total != 3 || pagination.TotalPages != 2 {
		t.Fatalf("expected total 3 over 2 pages, got %+v", pagination)
	}

	entries, _, err = engine.List(context.Background(), audit.Filter{}, 2, 2, audit.SortDesc)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != audit.ActionCreate {
		t.Fatalf("expected oldest entry on last page, got %+v", entries)
	}
}

func TestListFiltersCombineWithAnd(t *testing.T) {
	engine, _ := newEngine(t,
		entryAt("u1", audit.ActionCreate, "plant", "p1", time.Hour),
		entryAt("u1", audit.ActionDelete, "plant", "p1", time.Hour),
		entryAt("u2", audit.ActionCreate, "plant", "p2", time.Hour),
	)

	filter := audit.Filter{UserID: "u1", Action: audit.ActionCreate}
	entries, pagination, err := engine.List(context.Background(), filter, 1, 10, audit.SortDesc)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if pagination.Total != 1 || len(entries) != 1 {
		t.Fatalf("expected single match, got %d", pagination.Total)
	}
	if entries[0].UserID != "u1" || entries[0].Action != audit.ActionCreate {
		t.Fatalf("wrong entry matched: %+v", entries[0])
	}
}

func TestListRejectsInvertedRange(t *testing.T) {
	engine, _ := newEngine(t)
	filter := audit.Filter{From: testNow, To: testNow.Add(-time.Hour)}
	_, _, err := engine.List(context.Background(), filter, 1, 10, audit.SortDesc)
	if !errors.Is(err, audit.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestStatsTopUsersTieBrokenByUserID(t *testing.T) {
	var entries []audit.Entry
	counts := map[string]int{"u1": 5, "u2": 5, "u3": 3}
	for userID, count := range counts {
		for i := 0; i < count; i++ {
			entries = append(entries, entryAt(userID, audit.ActionUpdate, "plant", "p1", time.Duration(i)*time.Minute))
		}
	}
	engine, _ := newEngine(t, entries...)

	stats, err := engine.Stats(context.Background(), audit.Filter{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 13 {
		t.Fatalf("expected total 13, got %d", stats.Total)
	}
	want := []string{"u1", "u2", "u3"}
	if len(stats.TopUsers) != len(want) {
		t.Fatalf("expected %d users, got %d", len(want), len(stats.TopUsers))
	}
	for i, userID := range want {
		if stats.TopUsers[i].UserID != userID {
			t.Fatalf("position %d: expected %s, got %s", i, userID, stats.TopUsers[i].UserID)
		}
	}
	if stats.ByAction[audit.ActionUpdate] != 13 {
		t.Fatalf("expected 13 updates, got %d", stats.ByAction[audit.ActionUpdate])
	}
}

func TestEntityHistoryNewestFirstWithDiff(t *testing.T) {
	older := entryAt("u1", audit.ActionCreate, "plant", "p1", 2*time.Hour)
	older.Changes = audit.Changes{After: json.RawMessage(`{"name":"Plant A"}`)}
	newer := entryAt("u1", audit.ActionUpdate, "plant", "p1", time.Hour)
	newer.Changes = audit.Changes{
		Before: json.RawMessage(`{"name":"Plant A"}`),
		After:  json.RawMessage(`{"name":"Plant B"}`),
	}
	unrelated := entryAt("u1", audit.ActionUpdate, "plant", "p2", time.Minute)
	engine, _ := newEngine(t, older, newer, unrelated)

	entries, err := engine.EntityHistory(context.Background(), "plant", "p1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Action != audit.ActionUpdate {
		t.Fatalf("expected newest first, got %s", entries[0].Action)
	}
	if string(entries[0].Changes.Before) != `{"name":"Plant A"}` {
		t.Fatalf("expected diff preserved, got %s", entries[0].Changes.Before)
	}
}

func TestExportJSONAndCSV(t *testing.T) {
	engine, _ := newEngine(t,
		entryAt("u1", audit.ActionCreate, "plant", "p1", time.Hour),
		entryAt("u2", audit.ActionDelete, "device", "d1", 2*time.Hour),
	)

	data, contentType, err := engine.Export(context.Background(), audit.ExportJSON, audit.Filter{})
	if err != nil {
		t.Fatalf("export json: %v", err)
	}
	if contentType != "application/json" {
		t.Fatalf("expected json content type, got %s", contentType)
	}
	var decoded []audit.Entry
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 exported entries, got %d", len(decoded))
	}

	data, contentType, err = engine.Export(context.Background(), audit.ExportCSV, audit.Filter{})
	if err != nil {
		t.Fatalf("export csv: %v", err)
	}
	if !strings.HasPrefix(contentType, "text/csv") {
		t.Fatalf("expected csv content type, got %s", contentType)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,user_id,role,action,resource,resource_id,created_at") {
		t.Fatalf("unexpected csv header: %s", lines[0])
	}

	if _, _, err := engine.Export(context.Background(), "pdf", audit.Filter{}); !errors.Is(err, audit.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestCleanupDeletesOnlyExpiredEntries(t *testing.T) {
	engine, store := newEngine(t,
		entryAt("u1", audit.ActionCreate, "plant", "p1", 100*24*time.Hour),
		entryAt("u1", audit.ActionUpdate, "plant", "p1", 10*24*time.Hour),
	)

	deleted, err := engine.Cleanup(context.Background(), 90)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}
	remaining, err := store.ListAll(context.Background(), audit.Filter{}, audit.SortDesc)
	if err != nil {
		t.Fatalf("list remaining: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", len(remaining))
	}
}

func TestCleanupRejectsNonPositiveRetention(t *testing.T) {
	engine, _ := newEngine(t)
	for _, days := range []int{0, -5} {
		if _, err := engine.Cleanup(context.Background(), days); !errors.Is(err, audit.ErrInvalidRetention) {
			t.Fatalf("retention %d: expected ErrInvalidRetention, got %v", days, err)
		}
	}
}
