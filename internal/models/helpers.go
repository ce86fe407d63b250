// Package models defines the data structures shared by the FeelFree chat backend.
package models

import (
	"fmt"
	"strings"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// RecordIDString safely extracts the string ID from a SurrealDB RecordID.
// Returns an error if the ID is not a string type.
func RecordIDString(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected ID type: %T (expected string)", id.ID)
	}
	return s, nil
}

// SplitList turns a comma separated answer ("Music, travel ,,code") into
// trimmed, non-empty items in their original order.
func SplitList(s string) []string {
	return cleanList(strings.Split(s, ","))
}

// cleanList trims items and drops empty ones. A nil input yields an empty slice.
func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
