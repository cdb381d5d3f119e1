package store

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"nextstep/internal/domain"
)

var (
	ErrEmptyTitle = errors.New("title is required")
	ErrEmptyName  = errors.New("name is required")
	ErrNotFound   = errors.New("not found")
)

// State is the canonical state tree. Insertion order is preserved in
// every collection (oldest first).
type State struct {
	InboxItems  []domain.InboxItem
	Projects    []domain.Project
	Contexts    []domain.Context
	NextActions []domain.NextAction
}

// Change describes one applied mutation; it doubles as the command-log
// record handed to subscribers.
type Change struct {
	Op         string
	EntityKind string
	EntityID   string
	Payload    map[string]any
}

// Subscriber observes committed mutations. Contexts-only changes do not
// fire subscribers since contexts are never persisted.
type Subscriber func(Change, State)

// Store is the single source of truth. It performs no internal locking:
// all mutations must originate from one control flow.
type Store struct {
	state State
	subs  []Subscriber
	Now   func() time.Time
	NewID func() string
}

// New creates a store seeded with the given context taxonomy and
// otherwise empty collections.
func New(contexts []domain.Context) *Store {
	return &Store{
		state: State{Contexts: append([]domain.Context(nil), contexts...)},
		Now:   time.Now,
		NewID: func() string { return uuid.New().String() },
	}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.New().String()
}

// Load replaces the persisted collections with a loaded snapshot.
// Contexts keep their seeded values. No subscribers fire: loading is
// not a mutation to persist back.
func (s *Store) Load(st State) {
	s.state.InboxItems = append([]domain.InboxItem(nil), st.InboxItems...)
	s.state.Projects = append([]domain.Project(nil), st.Projects...)
	s.state.NextActions = append([]domain.NextAction(nil), st.NextActions...)
}

// Subscribe registers a subscriber for committed mutations.
func (s *Store) Subscribe(fn Subscriber) {
	s.subs = append(s.subs, fn)
}

func (s *Store) notify(c Change) {
	if len(s.subs) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range s.subs {
		fn(c, snap)
	}
}

// Snapshot returns a copy of the state safe to hand to other goroutines.
func (s *Store) Snapshot() State {
	return State{
		InboxItems:  append([]domain.InboxItem(nil), s.state.InboxItems...),
		Projects:    append([]domain.Project(nil), s.state.Projects...),
		Contexts:    append([]domain.Context(nil), s.state.Contexts...),
		NextActions: append([]domain.NextAction(nil), s.state.NextActions...),
	}
}

func (s *Store) InboxItems() []domain.InboxItem {
	return append([]domain.InboxItem(nil), s.state.InboxItems...)
}

func (s *Store) Projects() []domain.Project {
	return append([]domain.Project(nil), s.state.Projects...)
}

func (s *Store) Contexts() []domain.Context {
	return append([]domain.Context(nil), s.state.Contexts...)
}

func (s *Store) NextActions() []domain.NextAction {
	return append([]domain.NextAction(nil), s.state.NextActions...)
}

// --- inbox ---

// AddInboxItem captures a raw thought into the inbox.
func (s *Store) AddInboxItem(title, description string) (domain.InboxItem, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.InboxItem{}, ErrEmptyTitle
	}
	item := domain.InboxItem{
		ID:          s.newID(),
		Title:       title,
		Description: description,
		CreatedAt:   s.now(),
	}
	s.state.InboxItems = append(s.state.InboxItems, item)
	s.notify(Change{Op: "inbox.added", EntityKind: "inboxItem", EntityID: item.ID, Payload: map[string]any{"title": item.Title}})
	return item, nil
}

// RemoveInboxItem discards an inbox item. Absent ids are a silent no-op.
func (s *Store) RemoveInboxItem(id string) {
	kept := s.state.InboxItems[:0]
	removed := false
	for _, it := range s.state.InboxItems {
		if it.ID == id {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	s.state.InboxItems = kept
	if removed {
		s.notify(Change{Op: "inbox.removed", EntityKind: "inboxItem", EntityID: id})
	}
}

// --- projects ---

// AddProject creates a new project and returns it; callers need the id
// to link next actions immediately.
func (s *Store) AddProject(name, description string) (domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Project{}, ErrEmptyName
	}
	p := domain.Project{
		ID:          s.newID(),
		Name:        name,
		Description: description,
		CreatedAt:   s.now(),
	}
	s.state.Projects = append(s.state.Projects, p)
	s.notify(Change{Op: "project.added", EntityKind: "project", EntityID: p.ID, Payload: map[string]any{"name": p.Name}})
	return p, nil
}

// ProjectUpdateOptions encapsulates allowed project updates. Nil fields
// are left untouched.
type ProjectUpdateOptions struct {
	ID          string
	Name        *string
	Description *string
	Completed   *bool
}

// UpdateProject merges the given fields into the matching project.
// Absent ids are a silent no-op.
func (s *Store) UpdateProject(opts ProjectUpdateOptions) error {
	if opts.Name != nil && strings.TrimSpace(*opts.Name) == "" {
		return ErrEmptyName
	}
	for i := range s.state.Projects {
		if s.state.Projects[i].ID != opts.ID {
			continue
		}
		p := &s.state.Projects[i]
		if opts.Name != nil {
			p.Name = strings.TrimSpace(*opts.Name)
		}
		if opts.Description != nil {
			p.Description = *opts.Description
		}
		if opts.Completed != nil {
			p.Completed = *opts.Completed
		}
		s.notify(Change{Op: "project.updated", EntityKind: "project", EntityID: opts.ID})
		return nil
	}
	return nil
}

// UpdateProjectProgress stores a manual progress value, clamped into
// [0,100], and flips the manual/automatic switch.
func (s *Store) UpdateProjectProgress(id string, progress int, useManual bool) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	for i := range s.state.Projects {
		if s.state.Projects[i].ID != id {
			continue
		}
		s.state.Projects[i].ManualProgress = progress
		s.state.Projects[i].UseManualProgress = useManual
		s.notify(Change{Op: "project.progress", EntityKind: "project", EntityID: id, Payload: map[string]any{"progress": progress, "manual": useManual}})
		return
	}
}

// DeleteProject removes the project and hard-cascades every next action
// referencing it. Irreversible.
func (s *Store) DeleteProject(id string) {
	keptProjects := s.state.Projects[:0]
	removed := false
	for _, p := range s.state.Projects {
		if p.ID == id {
			removed = true
			continue
		}
		keptProjects = append(keptProjects, p)
	}
	s.state.Projects = keptProjects
	keptActions := s.state.NextActions[:0]
	for _, a := range s.state.NextActions {
		if a.ProjectID != nil && *a.ProjectID == id {
			continue
		}
		keptActions = append(keptActions, a)
	}
	s.state.NextActions = keptActions
	if removed {
		s.notify(Change{Op: "project.deleted", EntityKind: "project", EntityID: id})
	}
}

// --- contexts ---

// AddContext appends a context. No uniqueness check; contexts live only
// in memory, so no subscribers fire.
func (s *Store) AddContext(name, color string) (domain.Context, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Context{}, ErrEmptyName
	}
	c := domain.Context{ID: s.newID(), Name: name, Color: color}
	s.state.Contexts = append(s.state.Contexts, c)
	return c, nil
}

// --- next actions ---

// AddNextAction creates an active next action. projectID/contextID are
// stored as given; references are not validated here and readers must
// resolve dangling ones as "no project"/"no context".
func (s *Store) AddNextAction(title, description string, projectID, contextID *string) (domain.NextAction, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.NextAction{}, ErrEmptyTitle
	}
	a := domain.NextAction{
		ID:          s.newID(),
		Title:       title,
		Description: description,
		ProjectID:   projectID,
		ContextID:   contextID,
		CreatedAt:   s.now(),
	}
	s.state.NextActions = append(s.state.NextActions, a)
	s.notify(Change{Op: "action.added", EntityKind: "nextAction", EntityID: a.ID, Payload: map[string]any{"title": a.Title}})
	return a, nil
}

// ActionUpdateOptions encapsulates allowed next-action updates. Nil
// fields are left untouched; an empty Project/Context clears the link.
type ActionUpdateOptions struct {
	ID          string
	Title       *string
	Description *string
	Project     *string
	Context     *string
}

// UpdateNextAction merges the given fields into the matching action.
// Absent ids are a silent no-op.
func (s *Store) UpdateNextAction(opts ActionUpdateOptions) error {
	if opts.Title != nil && strings.TrimSpace(*opts.Title) == "" {
		return ErrEmptyTitle
	}
	for i := range s.state.NextActions {
		if s.state.NextActions[i].ID != opts.ID {
			continue
		}
		a := &s.state.NextActions[i]
		if opts.Title != nil {
			a.Title = strings.TrimSpace(*opts.Title)
		}
		if opts.Description != nil {
			a.Description = *opts.Description
		}
		if opts.Project != nil {
			if *opts.Project == "" {
				a.ProjectID = nil
			} else {
				a.ProjectID = opts.Project
			}
		}
		if opts.Context != nil {
			if *opts.Context == "" {
				a.ContextID = nil
			} else {
				a.ContextID = opts.Context
			}
		}
		s.notify(Change{Op: "action.updated", EntityKind: "nextAction", EntityID: opts.ID})
		return nil
	}
	return nil
}

// CompleteNextAction moves an action Active -> Completed and stamps
// CompletedAt. The transition is one-way: completing an already
// completed action is a true no-op and keeps the original CompletedAt.
func (s *Store) CompleteNextAction(id string) {
	for i := range s.state.NextActions {
		if s.state.NextActions[i].ID != id {
			continue
		}
		if s.state.NextActions[i].Completed {
			return
		}
		now := s.now()
		s.state.NextActions[i].Completed = true
		s.state.NextActions[i].CompletedAt = &now
		s.notify(Change{Op: "action.completed", EntityKind: "nextAction", EntityID: id})
		return
	}
}

// DeleteNextAction removes one action by id. Absent ids are a silent no-op.
func (s *Store) DeleteNextAction(id string) {
	kept := s.state.NextActions[:0]
	removed := false
	for _, a := range s.state.NextActions {
		if a.ID == id {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	s.state.NextActions = kept
	if removed {
		s.notify(Change{Op: "action.deleted", EntityKind: "nextAction", EntityID: id})
	}
}

// DeleteCompletedActions removes every completed action in one batch.
func (s *Store) DeleteCompletedActions() {
	kept := s.state.NextActions[:0]
	removed := 0
	for _, a := range s.state.NextActions {
		if a.Completed {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	s.state.NextActions = kept
	if removed > 0 {
		s.notify(Change{Op: "action.cleared", EntityKind: "nextAction", Payload: map[string]any{"count": removed}})
	}
}

// --- processing ---

// ProcessOptions describes the disposition of one inbox item. An empty
// ProjectName and ActionTitle means plain discard. When both a project
// and an action are requested, the action links to the new project.
type ProcessOptions struct {
	ItemID             string
	ProjectName        string
	ProjectDescription string
	ActionTitle        string
	ActionDescription  string
	ProjectID          string // link action to an existing project
	ContextID          string
}

type ProcessResult struct {
	Project *domain.Project
	Action  *domain.NextAction
}

// ProcessInboxItem converts an inbox item into a next action and/or
// project, or discards it, as one atomic transaction: validation
// failures leave the state untouched and the item captured, and a
// single change notification covers the whole disposition.
func (s *Store) ProcessInboxItem(opts ProcessOptions) (ProcessResult, error) {
	var res ProcessResult
	idx := -1
	for i, it := range s.state.InboxItems {
		if it.ID == opts.ItemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return res, ErrNotFound
	}
	projectName := strings.TrimSpace(opts.ProjectName)
	actionTitle := strings.TrimSpace(opts.ActionTitle)
	if opts.ProjectName != "" && projectName == "" {
		return res, ErrEmptyName
	}
	if opts.ActionTitle != "" && actionTitle == "" {
		return res, ErrEmptyTitle
	}

	now := s.now()
	if projectName != "" {
		p := domain.Project{
			ID:          s.newID(),
			Name:        projectName,
			Description: opts.ProjectDescription,
			CreatedAt:   now,
		}
		s.state.Projects = append(s.state.Projects, p)
		res.Project = &p
	}
	if actionTitle != "" {
		projectID := optionalString(opts.ProjectID)
		if res.Project != nil {
			projectID = &res.Project.ID
		}
		a := domain.NextAction{
			ID:          s.newID(),
			Title:       actionTitle,
			Description: opts.ActionDescription,
			ProjectID:   projectID,
			ContextID:   optionalString(opts.ContextID),
			CreatedAt:   now,
		}
		s.state.NextActions = append(s.state.NextActions, a)
		res.Action = &a
	}
	kept := append(s.state.InboxItems[:idx:idx], s.state.InboxItems[idx+1:]...)
	s.state.InboxItems = kept

	payload := map[string]any{}
	if res.Project != nil {
		payload["projectId"] = res.Project.ID
	}
	if res.Action != nil {
		payload["actionId"] = res.Action.ID
	}
	s.notify(Change{Op: "inbox.processed", EntityKind: "inboxItem", EntityID: opts.ItemID, Payload: payload})
	return res, nil
}

// --- derived reads ---

// Progress returns the displayed progress for a project: the stored
// manual value when UseManualProgress is set, otherwise the completed
// share of its actions (0 for a project with no actions).
func (s *Store) Progress(projectID string) int {
	for _, p := range s.state.Projects {
		if p.ID == projectID && p.UseManualProgress {
			return p.ManualProgress
		}
	}
	completed, total := 0, 0
	for _, a := range s.state.NextActions {
		if a.ProjectID == nil || *a.ProjectID != projectID {
			continue
		}
		total++
		if a.Completed {
			completed++
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// ActionsForProject returns the actions linked to a project, in
// insertion order.
func (s *Store) ActionsForProject(projectID string) []domain.NextAction {
	var res []domain.NextAction
	for _, a := range s.state.NextActions {
		if a.ProjectID != nil && *a.ProjectID == projectID {
			res = append(res, a)
		}
	}
	return res
}

// ActionsForContext returns the actions tagged with a context, in
// insertion order.
func (s *Store) ActionsForContext(contextID string) []domain.NextAction {
	var res []domain.NextAction
	for _, a := range s.state.NextActions {
		if a.ContextID != nil && *a.ContextID == contextID {
			res = append(res, a)
		}
	}
	return res
}

// ProjectByID resolves a project reference; ok is false for dangling ids.
func (s *Store) ProjectByID(id string) (domain.Project, bool) {
	for _, p := range s.state.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Project{}, false
}

// ContextByID resolves a context reference; ok is false for dangling ids.
func (s *Store) ContextByID(id string) (domain.Context, bool) {
	for _, c := range s.state.Contexts {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Context{}, false
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
