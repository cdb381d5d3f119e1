package domain

import "time"

// JSON tags are the persisted field names; keep them verbatim.

type InboxItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Project struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	Completed         bool      `json:"completed"`
	ManualProgress    int       `json:"manualProgress"`
	UseManualProgress bool      `json:"useManualProgress"`
}

type Context struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type NextAction struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ProjectID   *string    `json:"projectId"`
	ContextID   *string    `json:"contextId"`
	CreatedAt   time.Time  `json:"createdAt"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
