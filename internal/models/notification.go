package models

import (
	"sort"
	"time"
)

type StateKind string

const (
	StateRead      StateKind = "READ"
	StateFavorite  StateKind = "FAVORITE"
	StateHidden    StateKind = "HIDDEN"
	StateCompleted StateKind = "COMPLETED"
)

// IsValid reports whether k is one of the known state kinds.
func (k StateKind) IsValid() bool {
	switch k {
	case StateRead, StateFavorite, StateHidden, StateCompleted:
		return true
	}
	return false
}

type ActionKind string

const (
	ActionRead     ActionKind = "read"
	ActionFavorite ActionKind = "favorite"
	ActionHide     ActionKind = "hide"
	ActionComplete ActionKind = "complete"
)

// Identifier names a notice across all sources. It is the join key between
// fetched entries and persisted per-user state.
type Identifier struct {
	Source string `json:"source"`
	ID     string `json:"id"`
}

func (i Identifier) String() string {
	return i.Source + "/" + i.ID
}

type Entry struct {
	Identifier

	Title            string                  `json:"title"`
	Body             string                  `json:"body,omitempty"`
	URL              string                  `json:"url,omitempty"`
	LinkText         string                  `json:"linkText,omitempty"`
	Image            string                  `json:"image,omitempty"`
	Priority         int                     `json:"priority,omitempty"`
	DueDate          *time.Time              `json:"dueDate,omitempty"`
	AvailableActions []ActionKind            `json:"availableActions,omitempty"`
	Attributes       Attributes              `json:"attributes,omitempty"`
	States           map[StateKind]time.Time `json:"states,omitempty"`
}

// HasAction reports whether kind is already offered on the entry.
func (e Entry) HasAction(kind ActionKind) bool {
	for _, a := range e.AvailableActions {
		if a == kind {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	out := e
	if e.DueDate != nil {
		due := *e.DueDate
		out.DueDate = &due
	}
	if e.AvailableActions != nil {
		out.AvailableActions = append([]ActionKind(nil), e.AvailableActions...)
	}
	out.Attributes = e.Attributes.Clone()
	if e.States != nil {
		out.States = make(map[StateKind]time.Time, len(e.States))
		for k, v := range e.States {
			out.States[k] = v
		}
	}
	return out
}

type Category struct {
	Title   string  `json:"title"`
	Entries []Entry `json:"entries"`
}

// Error reports one failed provider. Message serializes as "error" to keep
// the field name existing clients read.
type Error struct {
	Message string `json:"error"`
	Source  string `json:"source"`
}

type Response struct {
	Categories []Category `json:"categories"`
	Errors     []Error    `json:"errors"`
}

// EmptyResponse returns a response with non-nil, empty collections so it
// encodes as {"categories":[],"errors":[]}.
func EmptyResponse() *Response {
	return &Response{Categories: []Category{}, Errors: []Error{}}
}

// ErrorResponse returns a degraded response carrying a single error.
func ErrorResponse(source, message string) *Response {
	return &Response{
		Categories: []Category{},
		Errors:     []Error{{Message: message, Source: source}},
	}
}

// Clone returns a deep copy. Nil receivers clone to an empty response.
func (r *Response) Clone() *Response {
	if r == nil {
		return EmptyResponse()
	}
	out := &Response{
		Categories: make([]Category, len(r.Categories)),
		Errors:     append(make([]Error, 0, len(r.Errors)), r.Errors...),
	}
	for i, c := range r.Categories {
		entries := make([]Entry, len(c.Entries))
		for j, e := range c.Entries {
			entries[j] = e.Clone()
		}
		out.Categories[i] = Category{Title: c.Title, Entries: entries}
	}
	return out
}

// Combine appends other's categories and errors after r's, returning a new
// response. Neither input is modified.
func (r *Response) Combine(other *Response) *Response {
	out := r.Clone()
	if other == nil {
		return out
	}
	o := other.Clone()
	out.Categories = append(out.Categories, o.Categories...)
	out.Errors = append(out.Errors, o.Errors...)
	return out
}

// Filter returns a copy containing only entries for which keep returns true.
// Categories left empty are dropped; errors are preserved.
func (r *Response) Filter(keep func(Entry) bool) *Response {
	src := r.Clone()
	out := &Response{Categories: []Category{}, Errors: src.Errors}
	for _, c := range src.Categories {
		var kept []Entry
		for _, e := range c.Entries {
			if keep(e) {
				kept = append(kept, e)
			}
		}
		if len(kept) > 0 {
			out.Categories = append(out.Categories, Category{Title: c.Title, Entries: kept})
		}
	}
	return out
}

// Find returns the first entry with the given identifier.
func (r *Response) Find(id Identifier) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	for _, c := range r.Categories {
		for _, e := range c.Entries {
			if e.Identifier == id {
				return e, true
			}
		}
	}
	return Entry{}, false
}

// Size counts entries across all categories.
func (r *Response) Size() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, c := range r.Categories {
		n += len(c.Entries)
	}
	return n
}

type SortStrategy string

const (
	SortNone     SortStrategy = ""
	SortPriority SortStrategy = "priority"
	SortDueDate  SortStrategy = "due_date"
)

// Sort returns a copy with each category's entries ordered by strategy.
// Priority sorts ascending with unspecified (0) last; due date sorts entries
// that have one first, ascending. Ties keep source order.
func (r *Response) Sort(strategy SortStrategy) *Response {
	out := r.Clone()
	var less func(a, b Entry) bool
	switch strategy {
	case SortPriority:
		less = func(a, b Entry) bool {
			if a.Priority == 0 || b.Priority == 0 {
				return a.Priority != 0 && b.Priority == 0
			}
			return a.Priority < b.Priority
		}
	case SortDueDate:
		less = func(a, b Entry) bool {
			if a.DueDate == nil || b.DueDate == nil {
				return a.DueDate != nil && b.DueDate == nil
			}
			return a.DueDate.Before(*b.DueDate)
		}
	default:
		return out
	}
	for i := range out.Categories {
		entries := out.Categories[i].Entries
		sort.SliceStable(entries, func(x, y int) bool { return less(entries[x], entries[y]) })
	}
	return out
}
