// Package seatset normalizes the seat number input accepted by the
// booking API. Clients send seat lists as a JSON integer array, a
// JSON-encoded array string, or a plain comma-separated string; all
// forms canonicalize to a deduplicated, sorted []int.
package seatset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Normalize converts a decoded JSON value into a canonical seat set.
// It returns an error for unsupported shapes, non-integer tokens, and
// seat numbers below 1.
func Normalize(raw interface{}) ([]int, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("seat list is required")
	case []int:
		return canonicalize(v)
	case []interface{}:
		seats := make([]int, 0, len(v))
		for _, item := range v {
			n, err := toInt(item)
			if err != nil {
				return nil, err
			}
			seats = append(seats, n)
		}
		return canonicalize(seats)
	case string:
		return parseString(v)
	default:
		return nil, fmt.Errorf("unsupported seat list type %T", raw)
	}
}

func parseString(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("seat list is empty")
	}

	// JSON-encoded array string, e.g. "[1,2,3]"
	if strings.HasPrefix(s, "[") {
		var decoded []interface{}
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, fmt.Errorf("invalid seat list: %w", err)
		}
		return Normalize(decoded)
	}

	// Comma-separated string, e.g. "1, 2, 3"
	seats := make([]int, 0)
	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("invalid seat number %q", token)
		}
		seats = append(seats, n)
	}
	return canonicalize(seats)
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("seat number %v is not an integer", n)
		}
		return int(n), nil
	case int:
		return n, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("seat number %q is not an integer", n.String())
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("invalid seat number %q", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("unsupported seat number type %T", v)
	}
}

func canonicalize(seats []int) ([]int, error) {
	seen := make(map[int]bool, len(seats))
	result := make([]int, 0, len(seats))
	for _, n := range seats {
		if n < 1 {
			return nil, fmt.Errorf("seat number %d must be positive", n)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		result = append(result, n)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("seat list is empty")
	}
	sort.Ints(result)
	return result, nil
}
