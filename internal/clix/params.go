package clix

import (
	"fmt"

	"github.com/spf13/pflag"
)

const (
	DefaultLimit = 20
	MaxLimit     = 500
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// AddPaginationFlags registers --limit/-n and --offset.
func AddPaginationFlags(flags *pflag.FlagSet) {
	flags.IntP("limit", "n", DefaultLimit, "maximum number of items to show")
	flags.Int("offset", 0, "number of items to skip")
}

// ParsePagination reads --limit and --offset. Missing or non-positive limits
// fall back to DefaultLimit and negative offsets to 0.
func ParsePagination(flags *pflag.FlagSet) (PaginationParams, error) {
	limit, _ := flags.GetInt("limit")
	offset, _ := flags.GetInt("offset")
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		return PaginationParams{}, fmt.Errorf("--limit must be at most %d", MaxLimit)
	}
	if offset < 0 {
		offset = 0
	}
	return PaginationParams{Limit: limit, Offset: offset}, nil
}
