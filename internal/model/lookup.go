package model

// LookupItem is a generic reference-data row (body types, colours, fuel
// types, ...). Image is empty for lists without artwork.
type LookupItem struct {
	ID    uint64 `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Image string `json:"image,omitempty" db:"image"`
}

// MakeItem is a row of the makes table.
type MakeItem struct {
	ID    uint64 `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Image string `json:"image" db:"image"`
}

// ModelItem is a row of the models table.
type ModelItem struct {
	ID        uint64 `json:"id" db:"id"`
	MakeID    uint64 `json:"make_id" db:"make_id"`
	MakeName  string `json:"make_name" db:"make_name"`
	ModelName string `json:"model_name" db:"model_name"`
}

// YearItem is a row of the years table.
type YearItem struct {
	ID        uint64 `json:"id" db:"id"`
	Year      string `json:"year" db:"year"`
	MakeName  string `json:"make_name" db:"make_name"`
	ModelName string `json:"model_name" db:"model_name"`
}

// TrimItem is a row of the trim table.
type TrimItem struct {
	ID        uint64 `json:"id" db:"id"`
	MakeName  string `json:"make_name" db:"make_name"`
	ModelName string `json:"model_name" db:"model_name"`
	TrimName  string `json:"trim_name" db:"trim_name"`
	Year      string `json:"year" db:"year"`
}

// Suggestions are the autocomplete hits for a partial query.
type Suggestions struct {
	Makes     []string `json:"makes"`
	Models    []string `json:"models"`
	Locations []string `json:"locations"`
}

// Page is the pagination block attached to list responses.
type Page struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// NewPage computes total_pages = ceil(total/limit).
func NewPage(page, limit int, total int64) Page {
	var pages int64
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Page{Page: page, Limit: limit, Total: total, TotalPages: pages}
}
