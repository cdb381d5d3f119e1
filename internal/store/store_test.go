package store_test

import (
	"errors"
	"testing"
	"time"

	"nextstep/internal/domain"
	"nextstep/internal/store"
)

func seedContexts() []domain.Context {
	return []domain.Context{
		{ID: "1", Name: "@computer", Color: "#3B82F6"},
		{ID: "2", Name: "@home", Color: "#10B981"},
		{ID: "3", Name: "@errands", Color: "#F59E0B"},
		{ID: "4", Name: "@phone", Color: "#EF4444"},
	}
}

func newTestStore() *store.Store {
	s := store.New(seedContexts())
	s.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestAddRemoveInboxItems(t *testing.T) {
	s := newTestStore()
	a, err := s.AddInboxItem("buy milk", "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	b, _ := s.AddInboxItem("call dentist", "molar")
	c, _ := s.AddInboxItem("plan trip", "")
	if a.ID == b.ID || b.ID == c.ID || a.ID == c.ID {
		t.Fatalf("expected unique ids, got %s %s %s", a.ID, b.ID, c.ID)
	}
	s.RemoveInboxItem(b.ID)
	items := s.InboxItems()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	// insertion order, oldest first
	if items[0].ID != a.ID || items[1].ID != c.ID {
		t.Fatalf("unexpected order: %v", items)
	}
	// removing again is a silent no-op
	s.RemoveInboxItem(b.ID)
	if len(s.InboxItems()) != 2 {
		t.Fatalf("no-op remove changed state")
	}
}

func TestAddInboxItemRejectsEmptyTitle(t *testing.T) {
	s := newTestStore()
	for _, title := range []string{"", "   ", "\t\n"} {
		if _, err := s.AddInboxItem(title, "desc"); !errors.Is(err, store.ErrEmptyTitle) {
			t.Fatalf("title %q: expected ErrEmptyTitle, got %v", title, err)
		}
	}
	if len(s.InboxItems()) != 0 {
		t.Fatalf("rejected add mutated state")
	}
}

func TestAddInboxItemTrimsTitle(t *testing.T) {
	s := newTestStore()
	item, err := s.AddInboxItem("  buy milk  ", "")
	if err != nil {
		t.Fatal(err)
	}
	if item.Title != "buy milk" {
		t.Fatalf("expected trimmed title, got %q", item.Title)
	}
}

func TestCompleteNextActionIsOneWay(t *testing.T) {
	s := newTestStore()
	a, err := s.AddNextAction("write copy", "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.CompleteNextAction(a.ID)
	first := s.NextActions()[0]
	if !first.Completed || first.CompletedAt == nil {
		t.Fatalf("expected completed with timestamp, got %+v", first)
	}
	// a later re-complete must not move CompletedAt
	s.Now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	s.CompleteNextAction(a.ID)
	second := s.NextActions()[0]
	if !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Fatalf("re-complete moved CompletedAt: %v -> %v", first.CompletedAt, second.CompletedAt)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	s := newTestStore()
	p1, _ := s.AddProject("Launch", "")
	p2, _ := s.AddProject("Keep", "")
	s.AddNextAction("a1", "", &p1.ID, nil)
	s.AddNextAction("a2", "", &p1.ID, nil)
	kept, _ := s.AddNextAction("b1", "", &p2.ID, nil)
	loose, _ := s.AddNextAction("loose", "", nil, nil)

	s.DeleteProject(p1.ID)

	if _, ok := s.ProjectByID(p1.ID); ok {
		t.Fatalf("project not deleted")
	}
	actions := s.NextActions()
	if len(actions) != 2 {
		t.Fatalf("expected 2 surviving actions, got %d", len(actions))
	}
	if actions[0].ID != kept.ID || actions[1].ID != loose.ID {
		t.Fatalf("cascade removed the wrong actions: %v", actions)
	}
}

func TestUpdateProjectProgressClamps(t *testing.T) {
	s := newTestStore()
	p, _ := s.AddProject("Launch", "")
	cases := []struct{ in, want int }{{-10, 0}, {150, 100}, {57, 57}}
	for _, tc := range cases {
		s.UpdateProjectProgress(p.ID, tc.in, true)
		got, _ := s.ProjectByID(p.ID)
		if got.ManualProgress != tc.want {
			t.Fatalf("progress %d: expected %d, got %d", tc.in, tc.want, got.ManualProgress)
		}
		if !got.UseManualProgress {
			t.Fatalf("expected manual progress flag set")
		}
	}
}

func TestAutomaticProgress(t *testing.T) {
	s := newTestStore()
	p, _ := s.AddProject("Launch", "")
	if got := s.Progress(p.ID); got != 0 {
		t.Fatalf("project without actions: expected 0, got %d", got)
	}
	a1, _ := s.AddNextAction("one", "", &p.ID, nil)
	a2, _ := s.AddNextAction("two", "", &p.ID, nil)
	s.AddNextAction("three", "", &p.ID, nil)
	s.AddNextAction("four", "", &p.ID, nil)
	s.CompleteNextAction(a1.ID)
	s.CompleteNextAction(a2.ID)
	if got := s.Progress(p.ID); got != 50 {
		t.Fatalf("2 of 4 done: expected 50, got %d", got)
	}
	// manual value wins while the flag is set
	s.UpdateProjectProgress(p.ID, 80, true)
	if got := s.Progress(p.ID); got != 80 {
		t.Fatalf("manual: expected 80, got %d", got)
	}
	s.UpdateProjectProgress(p.ID, 0, false)
	if got := s.Progress(p.ID); got != 50 {
		t.Fatalf("back to automatic: expected 50, got %d", got)
	}
}

func TestScenarioLaunchProject(t *testing.T) {
	s := newTestStore()
	p, err := s.AddProject("Launch", "")
	if err != nil {
		t.Fatal(err)
	}
	first, _ := s.AddNextAction("Write copy", "", &p.ID, nil)
	s.AddNextAction("Design logo", "", &p.ID, nil)
	s.CompleteNextAction(first.ID)
	if got := s.Progress(p.ID); got != 50 {
		t.Fatalf("expected 50%%, got %d%%", got)
	}
}

func TestDeleteCompletedActions(t *testing.T) {
	s := newTestStore()
	a1, _ := s.AddNextAction("one", "", nil, nil)
	s.AddNextAction("two", "", nil, nil)
	a3, _ := s.AddNextAction("three", "", nil, nil)
	s.CompleteNextAction(a1.ID)
	s.CompleteNextAction(a3.ID)
	s.DeleteCompletedActions()
	actions := s.NextActions()
	if len(actions) != 1 || actions[0].Title != "two" {
		t.Fatalf("expected only the active action to survive, got %v", actions)
	}
	// nothing completed: collection stays identical, no notification
	fired := 0
	s.Subscribe(func(store.Change, store.State) { fired++ })
	s.DeleteCompletedActions()
	if len(s.NextActions()) != 1 || fired != 0 {
		t.Fatalf("no-op clear mutated state or notified (fired=%d)", fired)
	}
}

func TestMissingEntityUpdatesAreNoOps(t *testing.T) {
	s := newTestStore()
	fired := 0
	s.Subscribe(func(store.Change, store.State) { fired++ })
	name := "renamed"
	if err := s.UpdateProject(store.ProjectUpdateOptions{ID: "ghost", Name: &name}); err != nil {
		t.Fatalf("update absent project: %v", err)
	}
	if err := s.UpdateNextAction(store.ActionUpdateOptions{ID: "ghost", Title: &name}); err != nil {
		t.Fatalf("update absent action: %v", err)
	}
	s.UpdateProjectProgress("ghost", 50, true)
	s.CompleteNextAction("ghost")
	s.DeleteProject("ghost")
	s.DeleteNextAction("ghost")
	if fired != 0 {
		t.Fatalf("no-op operations fired %d notifications", fired)
	}
}

func TestDanglingReferencesTolerated(t *testing.T) {
	s := newTestStore()
	ghost := "no-such-project"
	a, err := s.AddNextAction("orphan", "", &ghost, nil)
	if err != nil {
		t.Fatalf("dangling reference rejected on add: %v", err)
	}
	if _, ok := s.ProjectByID(ghost); ok {
		t.Fatalf("ghost project resolved")
	}
	// readers treat the unresolvable reference as "no project"
	got := s.ActionsForProject(ghost)
	if len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("expected orphan listed under its stored id")
	}
	if s.Progress(ghost) != 0 {
		t.Fatalf("progress of a ghost project should be computed, not fail")
	}
}

func TestUpdateNextActionMergesAndClears(t *testing.T) {
	s := newTestStore()
	p, _ := s.AddProject("Launch", "")
	a, _ := s.AddNextAction("draft", "old", &p.ID, nil)
	title := "final"
	clear := ""
	contextID := "2"
	if err := s.UpdateNextAction(store.ActionUpdateOptions{
		ID:      a.ID,
		Title:   &title,
		Project: &clear,
		Context: &contextID,
	}); err != nil {
		t.Fatal(err)
	}
	got := s.NextActions()[0]
	if got.Title != "final" || got.Description != "old" {
		t.Fatalf("merge wrong: %+v", got)
	}
	if got.ProjectID != nil {
		t.Fatalf("expected project link cleared")
	}
	if got.ContextID == nil || *got.ContextID != "2" {
		t.Fatalf("expected context set")
	}
}

func TestProcessInboxItemAtomic(t *testing.T) {
	s := newTestStore()
	item, _ := s.AddInboxItem("plan launch", "")
	fired := 0
	var last store.Change
	s.Subscribe(func(c store.Change, _ store.State) { fired++; last = c })

	// absent item leaves everything untouched
	if _, err := s.ProcessInboxItem(store.ProcessOptions{ItemID: "ghost"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// whitespace action title fails before any mutation
	if _, err := s.ProcessInboxItem(store.ProcessOptions{ItemID: item.ID, ActionTitle: "   "}); !errors.Is(err, store.ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	if len(s.InboxItems()) != 1 || fired != 0 {
		t.Fatalf("failed process mutated state (fired=%d)", fired)
	}

	res, err := s.ProcessInboxItem(store.ProcessOptions{
		ItemID:      item.ID,
		ProjectName: "Launch",
		ActionTitle: "Write copy",
		ContextID:   "1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Project == nil || res.Action == nil {
		t.Fatalf("expected project and action, got %+v", res)
	}
	if res.Action.ProjectID == nil || *res.Action.ProjectID != res.Project.ID {
		t.Fatalf("action not linked to the new project")
	}
	if len(s.InboxItems()) != 0 {
		t.Fatalf("processed item still captured")
	}
	if fired != 1 || last.Op != "inbox.processed" {
		t.Fatalf("expected one inbox.processed notification, got %d (%s)", fired, last.Op)
	}
}

func TestProcessInboxItemDiscard(t *testing.T) {
	s := newTestStore()
	item, _ := s.AddInboxItem("noise", "")
	res, err := s.ProcessInboxItem(store.ProcessOptions{ItemID: item.ID})
	if err != nil {
		t.Fatal(err)
	}
	if res.Project != nil || res.Action != nil {
		t.Fatalf("discard created entities: %+v", res)
	}
	if len(s.InboxItems()) != 0 || len(s.Projects()) != 0 || len(s.NextActions()) != 0 {
		t.Fatalf("discard left residue")
	}
}

func TestContextsDoNotNotify(t *testing.T) {
	s := newTestStore()
	fired := 0
	s.Subscribe(func(store.Change, store.State) { fired++ })
	if _, err := s.AddContext("@office", "#123ABC"); err != nil {
		t.Fatal(err)
	}
	if fired != 0 {
		t.Fatalf("context change fired persistence notification")
	}
	if len(s.Contexts()) != 5 {
		t.Fatalf("expected 5 contexts, got %d", len(s.Contexts()))
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newTestStore()
	s.AddInboxItem("original", "")
	snap := s.Snapshot()
	snap.InboxItems[0].Title = "mutated"
	if s.InboxItems()[0].Title != "original" {
		t.Fatalf("snapshot shares backing storage with the store")
	}
}

func TestLoadReplacesCollectionsKeepsContexts(t *testing.T) {
	s := newTestStore()
	s.AddInboxItem("stale", "")
	pid := "p1"
	s.Load(store.State{
		Projects:    []domain.Project{{ID: pid, Name: "Loaded"}},
		NextActions: []domain.NextAction{{ID: "a1", Title: "loaded act", ProjectID: &pid}},
	})
	if len(s.InboxItems()) != 0 {
		t.Fatalf("load kept previous inbox")
	}
	if len(s.Projects()) != 1 || len(s.NextActions()) != 1 {
		t.Fatalf("load missed collections")
	}
	if len(s.Contexts()) != 4 {
		t.Fatalf("load touched contexts")
	}
}
