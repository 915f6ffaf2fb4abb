package shared

// Page holds normalised limit/offset values for listings.
type Page struct {
	Limit  int
	Offset int
}

// NewPage clamps limit to [1, 200] (default 50) and offset to >= 0.
func NewPage(limit, offset int) Page {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}
