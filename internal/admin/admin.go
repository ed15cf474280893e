// Package admin layers the operator commands on top of the ledger: bans,
// the user listing, service-wide stats, and broadcast.
package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/sdko-org/filebed-relay/internal/format"
	"github.com/sdko-org/filebed-relay/internal/ledger"
	"github.com/sdko-org/filebed-relay/internal/models"
	"github.com/sirupsen/logrus"
)

// UsersPageSize is the number of users per /users page.
const UsersPageSize = 5

type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
}

type Console struct {
	ledger   *ledger.Ledger
	notifier Notifier
	admins   map[int64]bool
	log      *logrus.Entry
}

func NewConsole(logger *logrus.Logger, l *ledger.Ledger, notifier Notifier, adminIDs []int64) *Console {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Console{
		ledger:   l,
		notifier: notifier,
		admins:   admins,
		log:      logger.WithField("component", "admin"),
	}
}

func (c *Console) IsAdmin(id int64) bool {
	return c.admins[id]
}

func (c *Console) Ban(ctx context.Context, target int64, reason string, by int64) error {
	if reason == "" {
		reason = "unspecified"
	}
	return c.ledger.Ban(ctx, target, reason, by)
}

func (c *Console) Unban(ctx context.Context, target int64) error {
	return c.ledger.Unban(ctx, target)
}

func (c *Console) ListBanned(ctx context.Context) ([]models.BannedUser, error) {
	return c.ledger.ListBanned(ctx)
}

// UserRow joins a directory entry with the user's stats and ban flag.
type UserRow struct {
	Entry  models.DirectoryEntry
	Stats  *models.UserStats
	Banned bool
}

type UsersPage struct {
	Rows       []UserRow
	Page       int
	TotalPages int
}

// ListUsers paginates the directory; page numbers clamp into range.
func (c *Console) ListUsers(ctx context.Context, page int) (UsersPage, error) {
	users, err := c.ledger.ListDirectory(ctx)
	if err != nil {
		return UsersPage{}, err
	}

	totalPages := (len(users) + UsersPageSize - 1) / UsersPageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * UsersPageSize
	end := start + UsersPageSize
	if start > len(users) {
		start = len(users)
	}
	if end > len(users) {
		end = len(users)
	}

	rows := make([]UserRow, 0, end-start)
	for _, u := range users[start:end] {
		rows = append(rows, UserRow{
			Entry:  u,
			Stats:  c.ledger.GetStats(ctx, u.UserID),
			Banned: c.ledger.IsBanned(ctx, u.UserID),
		})
	}
	return UsersPage{Rows: rows, Page: page, TotalPages: totalPages}, nil
}

func (c *Console) Stats(ctx context.Context) (ledger.Totals, error) {
	return c.ledger.AggregateStats(ctx)
}

// Broadcast sends text to every known user sequentially. One recipient
// failing does not abort the rest; the sent/total count is returned.
func (c *Console) Broadcast(ctx context.Context, text string) (sent, total int, err error) {
	ids, err := c.ledger.ListAllIDs(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, id := range ids {
		if _, sendErr := c.notifier.SendMessage(ctx, id, text); sendErr != nil {
			c.log.WithError(sendErr).WithField("user_id", id).Warn("Broadcast delivery failed")
			continue
		}
		sent++
	}
	return sent, len(ids), nil
}

// FormatTotals renders the aggregate stats for the /stat reply.
func FormatTotals(t ledger.Totals) string {
	return fmt.Sprintf("📊 Service stats\n\n👥 Users: %d\n📤 Uploads: %d\n💾 Total size: %s\n🚫 Banned: %d",
		t.TotalUsers, t.TotalUploads, format.Size(t.TotalSize), t.BannedUsers)
}

// FormatUsersPage renders one /users page.
func FormatUsersPage(p UsersPage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👥 Users (page %d/%d)\n", p.Page, p.TotalPages)
	for _, row := range p.Rows {
		name := row.Entry.Username
		if name == "" {
			name = fmt.Sprintf("id %d", row.Entry.UserID)
		}
		flag := ""
		if row.Banned {
			flag = " 🚫"
		}
		fmt.Fprintf(&b, "\n• %s%s — %d uploads, %s",
			name, flag, row.Stats.TotalUploads, format.Size(row.Stats.TotalSize))
	}
	return b.String()
}
