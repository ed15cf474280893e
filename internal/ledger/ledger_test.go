package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sdko-org/filebed-relay/internal/kv"
	"github.com/sdko-org/filebed-relay/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLedger() *Ledger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(logger, kv.NewMemStore())
}

func TestRecordFreshUser(t *testing.T) {
	ctx := context.Background()
	l := testLedger()

	require.NoError(t, l.Record(ctx, 7, Event{
		FileType: models.TypeImage,
		FileSize: 10,
		Success:  true,
		FileName: "a.jpg",
		URL:      "http://x/a.jpg",
	}))

	stats := l.GetStats(ctx, 7)
	assert.Equal(t, int64(1), stats.TotalUploads)
	assert.Equal(t, int64(1), stats.SuccessfulUploads)
	assert.Equal(t, int64(0), stats.FailedUploads)
	assert.Equal(t, int64(10), stats.TotalSize)
	assert.Equal(t, int64(1), stats.FileTypes[models.TypeImage])

	today := time.Now().Format("2006-01-02")
	bucket, ok := stats.DailyData[today]
	require.True(t, ok)
	assert.Equal(t, int64(1), bucket.Uploads)
	assert.Equal(t, int64(10), bucket.Size)
	assert.Equal(t, int64(1), bucket.Successful)

	require.Len(t, stats.UploadHistory, 1)
	assert.Equal(t, "a.jpg", stats.UploadHistory[0].FileName)
	assert.NotEmpty(t, stats.UploadHistory[0].ID)
}

func TestRecordInvariants(t *testing.T) {
	ctx := context.Background()
	l := testLedger()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Record(ctx, 1, Event{FileType: models.TypeVideo, FileSize: 3, Success: i%2 == 0}))
	}
	require.NoError(t, l.Record(ctx, 1, Event{FileType: models.TypeOther, FileSize: 1, Success: false}))

	stats := l.GetStats(ctx, 1)
	assert.Equal(t, stats.TotalUploads, stats.SuccessfulUploads+stats.FailedUploads)

	var typeSum int64
	for _, count := range stats.FileTypes {
		typeSum += count
	}
	assert.Equal(t, stats.TotalUploads, typeSum)
}

func TestRecordFailureSkipsHistory(t *testing.T) {
	ctx := context.Background()
	l := testLedger()

	require.NoError(t, l.Record(ctx, 2, Event{FileType: models.TypeDocument, FileSize: 4, Success: false}))

	stats := l.GetStats(ctx, 2)
	assert.Equal(t, int64(1), stats.FailedUploads)
	assert.Empty(t, stats.UploadHistory)
}

func TestHistoryCapEvictsOldest(t *testing.T) {
	ctx := context.Background()
	l := testLedger()

	for i := 1; i <= HistoryCap+1; i++ {
		require.NoError(t, l.Record(ctx, 3, Event{
			FileType: models.TypeImage,
			FileSize: 1,
			Success:  true,
			FileName: fmt.Sprintf("f%03d.jpg", i),
		}))
	}

	stats := l.GetStats(ctx, 3)
	require.Len(t, stats.UploadHistory, HistoryCap)
	// Newest first; the very first upload is the one evicted.
	assert.Equal(t, fmt.Sprintf("f%03d.jpg", HistoryCap+1), stats.UploadHistory[0].FileName)
	for _, entry := range stats.UploadHistory {
		assert.NotEqual(t, "f001.jpg", entry.FileName)
	}
}

func TestDailyDataCapEvictsOldestDay(t *testing.T) {
	ctx := context.Background()
	l := testLedger()

	day := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i <= DailyDataCap; i++ {
		current := day.AddDate(0, 0, i)
		l.now = func() time.Time { return current }
		require.NoError(t, l.Record(ctx, 4, Event{FileType: models.TypeImage, FileSize: 1, Success: true}))
	}

	stats := l.GetStats(ctx, 4)
	assert.Len(t, stats.DailyData, DailyDataCap)
	_, hasOldest := stats.DailyData["2026-01-01"]
	assert.False(t, hasOldest)
	_, hasNewest := stats.DailyData[day.AddDate(0, 0, DailyDataCap).Format("2006-01-02")]
	assert.True(t, hasNewest)
}

func TestGetStatsUnknownUser(t *testing.T) {
	l := testLedger()
	stats := l.GetStats(context.Background(), 999)
	require.NotNil(t, stats)
	assert.Zero(t, stats.TotalUploads)
	assert.NotNil(t, stats.FileTypes)
	assert.NotNil(t, stats.DailyData)
}

func TestDeleteHistoryEntry(t *testing.T) {
	ctx := context.Background()
	l := testLedger()

	require.NoError(t, l.Record(ctx, 5, Event{FileType: models.TypeImage, FileSize: 1, Success: true, FileName: "keep.jpg"}))
	require.NoError(t, l.Record(ctx, 5, Event{FileType: models.TypeImage, FileSize: 1, Success: true, FileName: "drop.jpg"}))

	stats := l.GetStats(ctx, 5)
	require.Len(t, stats.UploadHistory, 2)
	target := stats.UploadHistory[0].ID

	found, err := l.DeleteHistoryEntry(ctx, 5, target)
	require.NoError(t, err)
	assert.True(t, found)

	stats = l.GetStats(ctx, 5)
	require.Len(t, stats.UploadHistory, 1)
	assert.Equal(t, "keep.jpg", stats.UploadHistory[0].FileName)

	found, err = l.DeleteHistoryEntry(ctx, 5, "missing_id")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBanUnban(t *testing.T) {
	ctx := context.Background()
	l := testLedger()

	assert.False(t, l.IsBanned(ctx, 42))

	require.NoError(t, l.Ban(ctx, 42, "spam", 1))
	assert.True(t, l.IsBanned(ctx, 42))

	// Re-banning updates, never duplicates.
	require.NoError(t, l.Ban(ctx, 42, "more spam", 1))
	banned, err := l.ListBanned(ctx)
	require.NoError(t, err)
	require.Len(t, banned, 1)
	assert.Equal(t, "more spam", banned[0].Reason)

	require.NoError(t, l.Unban(ctx, 42))
	assert.False(t, l.IsBanned(ctx, 42))

	// Unban is idempotent.
	require.NoError(t, l.Unban(ctx, 42))
}

type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("store down")
}
func (failingStore) Put(ctx context.Context, key string, value []byte) error {
	return errors.New("store down")
}
func (failingStore) Delete(ctx context.Context, key string) error {
	return errors.New("store down")
}
func (failingStore) Update(ctx context.Context, key string, fn func([]byte) ([]byte, error)) error {
	return errors.New("store down")
}

func TestIsBannedFailsOpen(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	l := New(logger, failingStore{})

	assert.False(t, l.IsBanned(context.Background(), 1))
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	l := testLedger()

	require.NoError(t, l.UpsertDirectory(ctx, 1, "alice"))
	require.NoError(t, l.UpsertDirectory(ctx, 2, "bob"))
	require.NoError(t, l.UpsertDirectory(ctx, 1, "alice_renamed"))

	users, err := l.ListDirectory(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice_renamed", users[0].Username)
	assert.False(t, users[0].LastSeen.Before(users[0].FirstSeen))

	ids, err := l.ListAllIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, ids)
}

func TestAggregateStats(t *testing.T) {
	ctx := context.Background()
	l := testLedger()

	require.NoError(t, l.UpsertDirectory(ctx, 1, "alice"))
	require.NoError(t, l.UpsertDirectory(ctx, 2, "bob"))
	require.NoError(t, l.Record(ctx, 1, Event{FileType: models.TypeImage, FileSize: 10, Success: true}))
	require.NoError(t, l.Record(ctx, 2, Event{FileType: models.TypeVideo, FileSize: 30, Success: true}))
	require.NoError(t, l.Ban(ctx, 2, "spam", 1))

	totals, err := l.AggregateStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.TotalUsers)
	assert.Equal(t, int64(2), totals.TotalUploads)
	assert.Equal(t, int64(40), totals.TotalSize)
	assert.Equal(t, 1, totals.BannedUsers)
}
