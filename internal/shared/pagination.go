package shared

// Pagination contains metadata for paginated listings. Page is 1-based.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// PageRequest is the caller-supplied slice of a listing.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps page/limit to sane defaults.
func (p PageRequest) Normalize() PageRequest {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 200 {
		p.Limit = 200
	}
	return p
}

// Skip returns the row offset for the requested page.
func (p PageRequest) Skip() int {
	return (p.Page - 1) * p.Limit
}

// NewPagination computes pagination metadata for a result set.
func NewPagination(req PageRequest, total int) Pagination {
	req = req.Normalize()
	return Pagination{Total: total, Page: req.Page, Limit: req.Limit}
}
