package storage

import (
	"sort"

	"github.com/mcoot/duelsync-go/internal/model"
)

// SortRecords orders records by creation time, then id
func SortRecords(records []*model.SessionRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}
