package ledger

import (
	"context"
	"strings"

	"github.com/sdko-org/filebed-relay/internal/models"
)

// HistoryPageSize is the fixed number of entries per history page.
const HistoryPageSize = 5

// HistoryFilter narrows a history query. Filters compose conjunctively.
type HistoryFilter struct {
	Page int
	// FileType narrows by exact category match.
	FileType string
	// FreeText matches case-insensitively against filename or description.
	FreeText string
	// DescriptionText matches case-insensitively against description only.
	DescriptionText string
}

type HistoryPage struct {
	Entries    []models.HistoryEntry
	Page       int
	TotalPages int
}

// QueryHistory pages through a user's upload history, newest first. Page
// numbers are clamped into [1, TotalPages].
func (l *Ledger) QueryHistory(ctx context.Context, id int64, filter HistoryFilter) HistoryPage {
	stats := l.GetStats(ctx, id)

	matched := make([]models.HistoryEntry, 0, len(stats.UploadHistory))
	for _, entry := range stats.UploadHistory {
		if matches(entry, filter) {
			matched = append(matched, entry)
		}
	}

	totalPages := (len(matched) + HistoryPageSize - 1) / HistoryPageSize
	if totalPages < 1 {
		totalPages = 1
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * HistoryPageSize
	end := start + HistoryPageSize
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	return HistoryPage{
		Entries:    matched[start:end],
		Page:       page,
		TotalPages: totalPages,
	}
}

func matches(entry models.HistoryEntry, filter HistoryFilter) bool {
	if filter.FileType != "" && entry.FileType != filter.FileType {
		return false
	}
	if filter.FreeText != "" {
		needle := strings.ToLower(filter.FreeText)
		if !strings.Contains(strings.ToLower(entry.FileName), needle) &&
			!strings.Contains(strings.ToLower(entry.Description), needle) {
			return false
		}
	}
	if filter.DescriptionText != "" {
		needle := strings.ToLower(filter.DescriptionText)
		if !strings.Contains(strings.ToLower(entry.Description), needle) {
			return false
		}
	}
	return true
}
