package pagination

import (
	"fmt"
	"strconv"
)

// Params holds normalized page/limit values and the derived offset
type Params struct {
	Page   int
	Limit  int
	Offset int
}

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1
)

// Parse reads page and limit query values, applying defaults and clamping
// limit to [MinLimit, MaxLimit]. Non-numeric input is an error; out-of-range
// numbers are clamped, not rejected.
func Parse(pageStr, limitStr string) (*Params, error) {
	page := DefaultPage
	if pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil {
			return nil, fmt.Errorf("invalid page parameter: %w", err)
		}
		if p >= 1 {
			page = p
		}
	}

	limit := DefaultLimit
	if limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, fmt.Errorf("invalid limit parameter: %w", err)
		}
		switch {
		case l < MinLimit:
			limit = MinLimit
		case l > MaxLimit:
			limit = MaxLimit
		default:
			limit = l
		}
	}

	return &Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}, nil
}
