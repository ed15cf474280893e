package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/sdko-org/filebed-relay/internal/kv"
	"github.com/sdko-org/filebed-relay/internal/ledger"
	"github.com/sdko-org/filebed-relay/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	sent    map[int64][]string
	failFor map[int64]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(map[int64][]string), failFor: make(map[int64]bool)}
}

func (f *fakeNotifier) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	if f.failFor[chatID] {
		return 0, errors.New("blocked by user")
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return 1, nil
}

func testConsole(t *testing.T, notifier Notifier, adminIDs ...int64) (*Console, *ledger.Ledger) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	l := ledger.New(logger, kv.NewMemStore())
	return NewConsole(logger, l, notifier, adminIDs), l
}

func TestIsAdmin(t *testing.T) {
	c, _ := testConsole(t, newFakeNotifier(), 1, 2)
	assert.True(t, c.IsAdmin(1))
	assert.True(t, c.IsAdmin(2))
	assert.False(t, c.IsAdmin(3))
}

func TestBanDefaultsReason(t *testing.T) {
	ctx := context.Background()
	c, l := testConsole(t, newFakeNotifier(), 1)

	require.NoError(t, c.Ban(ctx, 42, "", 1))
	banned, err := l.ListBanned(ctx)
	require.NoError(t, err)
	require.Len(t, banned, 1)
	assert.Equal(t, "unspecified", banned[0].Reason)
	assert.Equal(t, int64(1), banned[0].BannedBy)

	require.NoError(t, c.Unban(ctx, 42))
	banned, err = c.ListBanned(ctx)
	require.NoError(t, err)
	assert.Empty(t, banned)
}

func TestListUsersPagination(t *testing.T) {
	ctx := context.Background()
	c, l := testConsole(t, newFakeNotifier(), 1)

	for i := int64(1); i <= 12; i++ {
		require.NoError(t, l.UpsertDirectory(ctx, i, fmt.Sprintf("user%d", i)))
		require.NoError(t, l.Record(ctx, i, ledger.Event{FileType: models.TypeImage, FileSize: 10, Success: true}))
	}
	require.NoError(t, l.Ban(ctx, 3, "spam", 1))

	page, err := c.ListUsers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Rows, UsersPageSize)

	var sawBanned bool
	for _, row := range page.Rows {
		require.NotNil(t, row.Stats)
		assert.Equal(t, int64(1), row.Stats.TotalUploads)
		if row.Entry.UserID == 3 {
			sawBanned = row.Banned
		}
	}
	assert.True(t, sawBanned)

	last, err := c.ListUsers(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, last.Rows, 2)

	clamped, err := c.ListUsers(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, 3, clamped.Page)

	low, err := c.ListUsers(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, low.Page)
}

func TestListUsersEmptyDirectory(t *testing.T) {
	c, _ := testConsole(t, newFakeNotifier(), 1)
	page, err := c.ListUsers(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.Equal(t, 1, page.TotalPages)
}

func TestBroadcastIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	notifier := newFakeNotifier()
	notifier.failFor[2] = true
	c, l := testConsole(t, notifier, 1)

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, l.UpsertDirectory(ctx, i, fmt.Sprintf("user%d", i)))
	}

	sent, total, err := c.Broadcast(ctx, "maintenance tonight")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, sent)
	assert.Len(t, notifier.sent[1], 1)
	assert.Empty(t, notifier.sent[2])
	assert.Len(t, notifier.sent[3], 1)
}

func TestFormatTotals(t *testing.T) {
	out := FormatTotals(ledger.Totals{TotalUsers: 4, TotalUploads: 9, TotalSize: 2048, BannedUsers: 1})
	assert.Contains(t, out, "Users: 4")
	assert.Contains(t, out, "Uploads: 9")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "Banned: 1")
}

func TestFormatUsersPage(t *testing.T) {
	out := FormatUsersPage(UsersPage{
		Rows: []UserRow{
			{Entry: models.DirectoryEntry{UserID: 1, Username: "alice"}, Stats: &models.UserStats{TotalUploads: 3, TotalSize: 1024}},
			{Entry: models.DirectoryEntry{UserID: 2}, Stats: &models.UserStats{}, Banned: true},
		},
		Page:       1,
		TotalPages: 2,
	})
	assert.Contains(t, out, "page 1/2")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "id 2")
	assert.Contains(t, out, "🚫")
}
