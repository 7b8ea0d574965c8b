package util

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

// Calculate turns a 1-based page and a page size into an offset and limit.
// Out of range values fall back to page 1 and DefaultPageSize.
func Calculate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return (page - 1) * size, size
}

func Pages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// Window returns the part of items that falls on the requested page.
func Window[T any](items []T, page, size int) []T {
	from, limit := Calculate(page, size)
	if from >= len(items) {
		return []T{}
	}
	end := from + limit
	if end > len(items) {
		end = len(items)
	}
	return items[from:end]
}
