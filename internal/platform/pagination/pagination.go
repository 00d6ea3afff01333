// Package pagination implements keyset (cursor) pagination shared by every
// list-returning operation.
//
// A caller turns an inbound page request into a Spec with ParsePage, fetches
// Spec.Limit rows ordered by the list's surrogate key — anchored inclusively
// at the cursor row when a cursor is present — and hands the over-fetched
// rows to BuildPage, which trims the window, derives the page-info flags, and
// restores presentation order for backward pages.
package pagination

import (
	"errors"
	"strings"
)

// Direction orders a keyset fetch relative to the list's natural sort.
type Direction int

const (
	// Forward pages from oldest to newest along the surrogate key.
	Forward Direction = iota
	// Backward pages from newest to oldest along the surrogate key.
	Backward
)

// ErrConflictingCursors reports a request mixing forward and backward paging
// fields. The combination is a caller contract violation, not a guessable
// intent.
var ErrConflictingCursors = errors.New("pagination: first/after conflicts with last/before")

// Request carries the four optional page-request fields. At most one
// direction pair may be populated.
type Request struct {
	First  *int
	After  string
	Last   *int
	Before string
}

// Spec is a bounded, ordered fetch specification derived from one Request.
//
// Limit over-fetches by one row when no cursor is present (to detect that
// more rows exist) and by two rows when a cursor is present (the cursor row
// itself, which BuildPage drops, plus the more-rows probe).
type Spec struct {
	Cursor    string
	Direction Direction
	Count     int
	Limit     int
}

// ParsePage normalizes a page request into a fetch specification.
//
// first/after select forward paging, last/before backward paging; with
// neither pair present the spec defaults to forward with no cursor.
func ParsePage(defaultCount int, req Request) (Spec, error) {
	after := strings.TrimSpace(req.After)
	before := strings.TrimSpace(req.Before)

	forward := req.First != nil || after != ""
	backward := req.Last != nil || before != ""
	if forward && backward {
		return Spec{}, ErrConflictingCursors
	}

	spec := Spec{Direction: Forward, Count: defaultCount}
	if backward {
		spec.Direction = Backward
		spec.Cursor = before
		if req.Last != nil {
			spec.Count = *req.Last
		}
	} else {
		spec.Cursor = after
		if req.First != nil {
			spec.Count = *req.First
		}
	}
	if spec.Count <= 0 {
		spec.Count = defaultCount
	}
	if spec.Count <= 0 {
		spec.Count = 1
	}

	spec.Limit = spec.Count + 1
	if spec.Cursor != "" {
		spec.Limit = spec.Count + 2
	}
	return spec, nil
}

// Page is one presentation-ordered slice of a larger list.
//
// Items always run from oldest to newest along the natural sort, regardless
// of the fetch direction. Cursors are empty when the page is empty.
type Page[T any] struct {
	Items           []T
	HasNextPage     bool
	HasPreviousPage bool
	StartCursor     string
	EndCursor       string
}

// BuildPage trims an over-fetched row window into a page.
//
// When a cursor was used, the first fetched row is the anchor row itself: its
// presence proves rows exist on the cursor's far side, and it is dropped from
// the returned slice. The flags describe presentation order, so for backward
// fetches what was "previous" in fetch order is reported as next.
func BuildPage[T any](items []T, count int, usedCursor bool, direction Direction, getID func(T) string) Page[T] {
	if count < 0 {
		count = 0
	}

	var (
		page        Page[T]
		slice       []T
		beforePage  bool
		afterWindow bool
	)
	if usedCursor {
		beforePage = len(items) > 0
		afterWindow = len(items) > count+1
		end := min(len(items), count+1)
		if len(items) > 0 {
			slice = items[1:end]
		}
	} else {
		afterWindow = len(items) > count
		slice = items[:min(len(items), count)]
	}

	if direction == Backward {
		slice = reversed(slice)
		page.HasPreviousPage = afterWindow
		page.HasNextPage = beforePage
	} else {
		page.HasPreviousPage = beforePage
		page.HasNextPage = afterWindow
	}

	page.Items = slice
	if len(slice) > 0 && getID != nil {
		page.StartCursor = getID(slice[0])
		page.EndCursor = getID(slice[len(slice)-1])
	}
	return page
}

func reversed[T any](items []T) []T {
	if len(items) < 2 {
		return items
	}
	out := make([]T, len(items))
	for i, item := range items {
		out[len(items)-1-i] = item
	}
	return out
}
