package model

import "strings"

// Reserved project ids. These projects always exist and are never stored
// as per-user rows.
const (
	InboxID    = "inbox"
	PersonalID = "personal"
	WorkID     = "work"
)

// DefaultColor is used for custom projects created without a color
const DefaultColor = "#4ECDC4"

// Project represents a collection of tasks
type Project struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ProjectInput holds the fields of a project to be created
type ProjectInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Normalize trims the name and fills in the default color
func (in ProjectInput) Normalize() ProjectInput {
	in.Name = strings.TrimSpace(in.Name)
	if in.Color == "" {
		in.Color = DefaultColor
	}
	return in
}

// DefaultProjects returns the reserved projects in display order
func DefaultProjects() []Project {
	return []Project{
		{ID: InboxID, Name: "Inbox", Color: "#4f46e5"},
		{ID: PersonalID, Name: "Personal", Color: "#10b981"},
		{ID: WorkID, Name: "Work", Color: "#f97316"},
	}
}

// IsReservedProject reports whether id names a default project
func IsReservedProject(id string) bool {
	switch id {
	case InboxID, PersonalID, WorkID:
		return true
	}
	return false
}

// IsReservedName reports whether name collides, ignoring case, with the id
// or name of a default project
func IsReservedName(name string) bool {
	name = strings.TrimSpace(name)
	for _, p := range DefaultProjects() {
		if strings.EqualFold(name, p.ID) || strings.EqualFold(name, p.Name) {
			return true
		}
	}
	return false
}
