package service

import (
	"habittracker/internal/config"
	"habittracker/internal/models"
)

// Paginator turns page/page_size into LIMIT/OFFSET.
type Paginator struct {
	DefaultSize int
	MaxSize     int
}

func NewPaginator(cfg config.PaginationConfig) Paginator {
	return Paginator{DefaultSize: cfg.DefaultSize, MaxSize: cfg.MaxSize}
}

// Window is a normalized page request. OutOfRange windows yield no rows.
type Window struct {
	Page       int
	Size       int
	Limit      int
	Offset     int
	OutOfRange bool
}

// Normalize applies defaults and the size cap. size <= 0 selects the default size;
// page < 1 is out of range.
func (p Paginator) Normalize(page, size int) Window {
	def := p.DefaultSize
	if def <= 0 {
		def = models.DefaultPageSize
	}
	maxSize := p.MaxSize
	if maxSize <= 0 {
		maxSize = models.MaxPageSize
	}

	if size <= 0 {
		size = def
	}
	if size > maxSize {
		size = maxSize
	}

	w := Window{Page: page, Size: size, Limit: size}
	if page < 1 {
		w.OutOfRange = true
		return w
	}
	w.Offset = (page - 1) * size
	return w
}

func newPage[T any](items []T, total int, w Window) *models.Page[T] {
	if items == nil {
		items = []T{}
	}
	return &models.Page[T]{
		Count:    total,
		Page:     w.Page,
		PageSize: w.Size,
		Results:  items,
	}
}
