package utils

// PageMeta describes one page of a list response.
type PageMeta struct {
	TotalItems int  `json:"totalItems"`
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
}

// NewPageMeta computes the paging envelope for totalItems split into
// pages of pageSize. Non-positive inputs fall back to page 1 of 20.
func NewPageMeta(totalItems, page, pageSize int) PageMeta {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}

	totalPages := 0
	if totalItems > 0 {
		totalPages = (totalItems + pageSize - 1) / pageSize
	}

	return PageMeta{
		TotalItems: totalItems,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}
