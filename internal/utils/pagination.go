// Package utils holds tiny helpers with no domain knowledge, shared by the
// HTTP layer.
package utils

import "strconv"

// AtoiDefault parses s as an int and falls back to def when s is empty or
// not a valid integer. Query parameters like ?page= and ?page_size= go
// through this before clamping.
//
//	utils.AtoiDefault("3", 1)  // 3
//	utils.AtoiDefault("", 1)   // 1
//	utils.AtoiDefault("?", 20) // 20
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
