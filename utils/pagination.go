package utils

import "strconv"

const (
	DefaultPage    = 1
	DefaultPerPage = 20
)

// Pagination describes one page of a filtered, sorted result set.
type Pagination struct {
	Total       int64 `json:"total"`
	PerPage     int   `json:"perPage"`
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
}

// NewPagination computes page metadata for a total count. Out-of-range
// pages are legal, they simply yield an empty slice downstream.
func NewPagination(total int64, page, perPage int) Pagination {
	if page < 1 {
		page = DefaultPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	return Pagination{
		Total:       total,
		PerPage:     perPage,
		CurrentPage: page,
		TotalPages:  totalPages,
	}
}

// Offset returns how many documents to skip before this page.
func (p Pagination) Offset() int {
	return (p.CurrentPage - 1) * p.PerPage
}

// ParsePageParams parses page/limit query values, falling back to the
// defaults on garbage or non-positive input.
func ParsePageParams(pageRaw, limitRaw string) (page, perPage int) {
	page = DefaultPage
	perPage = DefaultPerPage
	if n, err := strconv.Atoi(pageRaw); err == nil && n > 0 {
		page = n
	}
	if n, err := strconv.Atoi(limitRaw); err == nil && n > 0 {
		perPage = n
	}
	return page, perPage
}
