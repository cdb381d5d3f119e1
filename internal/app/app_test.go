package app_test

import (
	"context"
	"testing"

	"nextstep/internal/app"
	"nextstep/internal/store"
)

func TestRestartRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a, err := app.Open(ctx, dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := a.Store.AddInboxItem("buy milk", ""); err != nil {
		t.Fatal(err)
	}
	p, err := a.Store.AddProject("Launch", "")
	if err != nil {
		t.Fatal(err)
	}
	act, err := a.Store.AddNextAction("Write copy", "", &p.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	a.Store.AddNextAction("Design logo", "", &p.ID, nil)
	a.Store.CompleteNextAction(act.ID)
	// an in-memory context must not survive the restart
	if _, err := a.Store.AddContext("@office", "#123ABC"); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := app.Open(ctx, dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()

	if len(b.Store.InboxItems()) != 1 {
		t.Fatalf("inbox not restored")
	}
	got, ok := b.Store.ProjectByID(p.ID)
	if !ok || got.Name != "Launch" {
		t.Fatalf("project not restored: %+v", got)
	}
	actions := b.Store.ActionsForProject(p.ID)
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if !actions[0].Completed || actions[0].CompletedAt == nil {
		t.Fatalf("completion not restored: %+v", actions[0])
	}
	if b.Store.Progress(p.ID) != 50 {
		t.Fatalf("expected 50%% after restart, got %d%%", b.Store.Progress(p.ID))
	}
	// contexts always reseed from config
	if len(b.Store.Contexts()) != 4 {
		t.Fatalf("expected the 4 seed contexts, got %d", len(b.Store.Contexts()))
	}
}

func TestJournalRecordsAcrossSession(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a, err := app.Open(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	item, err := a.Store.AddInboxItem("plan launch", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Store.ProcessInboxItem(store.ProcessOptions{ItemID: item.ID, ActionTitle: "Write copy"}); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := app.Open(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	entries, err := b.Journal.Tail(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 journal entries, got %d", len(entries))
	}
	if entries[0].Op != "inbox.processed" {
		t.Fatalf("expected inbox.processed on top, got %s", entries[0].Op)
	}
}

func TestFreshWorkspaceStartsEmpty(t *testing.T) {
	a, err := app.Open(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	st := a.Store.Snapshot()
	if len(st.InboxItems)+len(st.Projects)+len(st.NextActions) != 0 {
		t.Fatalf("fresh workspace not empty: %+v", st)
	}
	if len(st.Contexts) != 4 {
		t.Fatalf("expected 4 seed contexts, got %d", len(st.Contexts))
	}
}
