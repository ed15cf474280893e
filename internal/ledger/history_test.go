package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/sdko-org/filebed-relay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedHistory(t *testing.T, l *Ledger, id int64, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		fileType := models.TypeImage
		if i%2 == 0 {
			fileType = models.TypeDocument
		}
		require.NoError(t, l.Record(ctx, id, Event{
			FileType:    fileType,
			FileSize:    int64(i),
			Success:     true,
			FileName:    fmt.Sprintf("file%02d.dat", i),
			URL:         fmt.Sprintf("http://x/file%02d.dat", i),
			Description: fmt.Sprintf("upload number %d", i),
		}))
	}
}

func TestQueryHistoryPagination(t *testing.T) {
	ctx := context.Background()
	l := testLedger()
	seedHistory(t, l, 1, 12)

	page := l.QueryHistory(ctx, 1, HistoryFilter{Page: 1})
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 1, page.Page)
	require.Len(t, page.Entries, HistoryPageSize)
	// Newest first.
	assert.Equal(t, "file12.dat", page.Entries[0].FileName)

	last := l.QueryHistory(ctx, 1, HistoryFilter{Page: 3})
	assert.Len(t, last.Entries, 2)
	assert.Equal(t, "file01.dat", last.Entries[len(last.Entries)-1].FileName)
}

func TestQueryHistoryClampsPage(t *testing.T) {
	ctx := context.Background()
	l := testLedger()
	seedHistory(t, l, 1, 12)

	low := l.QueryHistory(ctx, 1, HistoryFilter{Page: 0})
	assert.Equal(t, 1, low.Page)

	high := l.QueryHistory(ctx, 1, HistoryFilter{Page: 99})
	assert.Equal(t, 3, high.Page)
	assert.NotEmpty(t, high.Entries)
}

func TestQueryHistoryTypeFilter(t *testing.T) {
	ctx := context.Background()
	l := testLedger()
	seedHistory(t, l, 1, 10)

	page := l.QueryHistory(ctx, 1, HistoryFilter{Page: 1, FileType: models.TypeDocument})
	require.NotEmpty(t, page.Entries)
	for _, entry := range page.Entries {
		assert.Equal(t, models.TypeDocument, entry.FileType)
	}
}

func TestQueryHistoryFreeText(t *testing.T) {
	ctx := context.Background()
	l := testLedger()
	seedHistory(t, l, 1, 10)

	t.Run("matches filename case-insensitively", func(t *testing.T) {
		page := l.QueryHistory(ctx, 1, HistoryFilter{Page: 1, FreeText: "FILE03"})
		require.Len(t, page.Entries, 1)
		assert.Equal(t, "file03.dat", page.Entries[0].FileName)
	})

	t.Run("matches description", func(t *testing.T) {
		page := l.QueryHistory(ctx, 1, HistoryFilter{Page: 1, FreeText: "upload number 7"})
		require.Len(t, page.Entries, 1)
		assert.Equal(t, "file07.dat", page.Entries[0].FileName)
	})

	t.Run("description-only filter ignores filenames", func(t *testing.T) {
		page := l.QueryHistory(ctx, 1, HistoryFilter{Page: 1, DescriptionText: "file03"})
		assert.Empty(t, page.Entries)
	})

	t.Run("filters compose conjunctively", func(t *testing.T) {
		page := l.QueryHistory(ctx, 1, HistoryFilter{
			Page:     1,
			FileType: models.TypeImage,
			FreeText: "upload number 4",
		})
		// file04 is a document, so the image filter excludes it.
		assert.Empty(t, page.Entries)
	})
}

func TestQueryHistoryEmpty(t *testing.T) {
	l := testLedger()
	page := l.QueryHistory(context.Background(), 1, HistoryFilter{Page: 1})
	assert.Empty(t, page.Entries)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.TotalPages)
}
