package domain

// Default page sizing.
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// SortDirection orders a page query.
type SortDirection string

// Sort directions.
const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// PageRequest describes one page of a filtered, sorted listing.
// SortBy must come from the adapter's allow-listed column set;
// anything else falls back to the default ordering.
type PageRequest struct {
	Page     int
	PageSize int
	SortBy   string
	SortDir  SortDirection

	// Artwork filters.
	Search         string
	Model          string
	Tag            string
	FavoriteOnly   bool
	IncludeDeleted bool
}

// Normalised returns a copy with page and page size clamped to sane
// bounds.
func (r PageRequest) Normalised() PageRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize <= 0 {
		r.PageSize = DefaultPageSize
	}
	if r.PageSize > MaxPageSize {
		r.PageSize = MaxPageSize
	}
	if r.SortDir != SortAsc && r.SortDir != SortDesc {
		r.SortDir = SortDesc
	}
	return r
}

// Offset returns the row offset for the request.
func (r PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// PageInfo carries the boundary arithmetic for one result page.
type PageInfo struct {
	Total      int
	Page       int
	PageSize   int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

// NewPageInfo computes page boundaries for a dataset of total rows.
func NewPageInfo(total, page, pageSize int) PageInfo {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	totalPages := (total + pageSize - 1) / pageSize
	return PageInfo{
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1 && total > 0,
	}
}

// ArtworkPage is one page of artworks.
type ArtworkPage struct {
	Data     []Artwork
	PageInfo PageInfo
}
