package util //nolint:revive // package name util hosts small shared helpers

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseIDList parses a comma-separated list of positive integer ids.
// Empty segments are ignored; duplicates are preserved.
func ParseIDList(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
