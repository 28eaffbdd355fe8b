package search

// ClampPage keeps page within [1, totalPages].
func ClampPage(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// Pagination tracks the current position within a result set.
type Pagination struct {
	Current int
	Total   int
}

// HasNext reports whether a following page exists.
func (p Pagination) HasNext() bool { return p.Current < p.Total }

// HasPrev reports whether a preceding page exists.
func (p Pagination) HasPrev() bool { return p.Current > 1 }

// Next returns the following page, clamped.
func (p Pagination) Next() int { return ClampPage(p.Current+1, p.Total) }

// Prev returns the preceding page, clamped.
func (p Pagination) Prev() int { return ClampPage(p.Current-1, p.Total) }

// GoTo returns page clamped to the known range.
func (p Pagination) GoTo(page int) int { return ClampPage(page, p.Total) }
