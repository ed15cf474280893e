// Package ledger owns every persisted document: per-user usage stats with a
// capped history log and daily buckets, the global ban list, and the user
// directory. It is the only writer to the key-value store.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/sdko-org/filebed-relay/internal/kv"
	"github.com/sdko-org/filebed-relay/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	keyBannedUsers = "banned_users"
	keyUsersList   = "users_list"

	// HistoryCap bounds uploadHistory; the oldest entry is dropped on
	// overflow.
	HistoryCap = 100
	// DailyDataCap bounds dailyData to the most recent distinct dates.
	DailyDataCap = 60
)

func statsKey(id int64) string {
	return fmt.Sprintf("user_stats_%d", id)
}

// Event describes one relay outcome to be folded into a user's stats.
type Event struct {
	FileType     string
	FileSize     int64
	Success      bool
	FileName     string
	URL          string
	ThumbnailURL string
	Description  string
}

type Ledger struct {
	store kv.Store
	log   *logrus.Entry
	now   func() time.Time
	seq   atomic.Uint64
}

func New(logger *logrus.Logger, store kv.Store) *Ledger {
	return &Ledger{
		store: store,
		log:   logger.WithField("component", "ledger"),
		now:   time.Now,
	}
}

func emptyStats(now time.Time) *models.UserStats {
	return &models.UserStats{
		FileTypes: make(map[string]int64),
		DailyData: make(map[string]models.DailyStat),
		CreatedAt: now,
	}
}

// GetStats returns the user's stats document, or a zeroed one when the user
// is unknown or the store is unreachable. It never fails.
func (l *Ledger) GetStats(ctx context.Context, id int64) *models.UserStats {
	raw, err := l.store.Get(ctx, statsKey(id))
	if err != nil {
		if err != kv.ErrNotFound {
			l.log.WithError(err).WithField("user_id", id).Warn("Stats read failed")
		}
		return emptyStats(l.now())
	}

	stats := emptyStats(l.now())
	if err := json.Unmarshal(raw, stats); err != nil {
		l.log.WithError(err).WithField("user_id", id).Warn("Stats document corrupt")
		return emptyStats(l.now())
	}
	if stats.FileTypes == nil {
		stats.FileTypes = make(map[string]int64)
	}
	if stats.DailyData == nil {
		stats.DailyData = make(map[string]models.DailyStat)
	}
	return stats
}

// Record folds one upload outcome into the user's stats document: counters,
// the file-type tally, today's daily bucket, and on success a new history
// entry. History is capped at HistoryCap entries newest-first; dailyData at
// DailyDataCap distinct dates, oldest evicted first.
func (l *Ledger) Record(ctx context.Context, id int64, ev Event) error {
	now := l.now()
	entryID := fmt.Sprintf("%d_%d", now.UnixMilli(), l.seq.Add(1))

	return l.store.Update(ctx, statsKey(id), func(current []byte) ([]byte, error) {
		stats := emptyStats(now)
		if current != nil {
			if err := json.Unmarshal(current, stats); err != nil {
				l.log.WithError(err).WithField("user_id", id).Warn("Replacing corrupt stats document")
				stats = emptyStats(now)
			}
		}
		if stats.FileTypes == nil {
			stats.FileTypes = make(map[string]int64)
		}
		if stats.DailyData == nil {
			stats.DailyData = make(map[string]models.DailyStat)
		}

		stats.TotalUploads++
		if ev.Success {
			stats.SuccessfulUploads++
		} else {
			stats.FailedUploads++
		}
		stats.TotalSize += ev.FileSize

		fileType := ev.FileType
		if fileType == "" {
			fileType = models.TypeOther
		}
		stats.FileTypes[fileType]++

		day := now.Format("2006-01-02")
		bucket := stats.DailyData[day]
		bucket.Uploads++
		bucket.Size += ev.FileSize
		if ev.Success {
			bucket.Successful++
		} else {
			bucket.Failed++
		}
		stats.DailyData[day] = bucket
		evictOldestDays(stats.DailyData, DailyDataCap)

		if ev.Success {
			entry := models.HistoryEntry{
				ID:           entryID,
				Timestamp:    now,
				FileName:     ev.FileName,
				FileType:     fileType,
				FileSize:     ev.FileSize,
				URL:          ev.URL,
				ThumbnailURL: ev.ThumbnailURL,
				Description:  ev.Description,
			}
			stats.UploadHistory = append([]models.HistoryEntry{entry}, stats.UploadHistory...)
			if len(stats.UploadHistory) > HistoryCap {
				stats.UploadHistory = stats.UploadHistory[:HistoryCap]
			}
		}

		return json.Marshal(stats)
	})
}

func evictOldestDays(daily map[string]models.DailyStat, limit int) {
	if len(daily) <= limit {
		return
	}
	days := make([]string, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	// ISO dates sort chronologically.
	sort.Strings(days)
	for _, day := range days[:len(days)-limit] {
		delete(daily, day)
	}
}

// DeleteHistoryEntry removes one history entry by ID. Returns false when no
// entry matched.
func (l *Ledger) DeleteHistoryEntry(ctx context.Context, id int64, entryID string) (bool, error) {
	found := false
	err := l.store.Update(ctx, statsKey(id), func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, nil
		}
		var stats models.UserStats
		if err := json.Unmarshal(current, &stats); err != nil {
			return nil, err
		}
		kept := stats.UploadHistory[:0]
		for _, entry := range stats.UploadHistory {
			if entry.ID == entryID {
				found = true
				continue
			}
			kept = append(kept, entry)
		}
		if !found {
			return nil, nil
		}
		stats.UploadHistory = kept
		return json.Marshal(&stats)
	})
	return found, err
}

// IsBanned fails open: a store error is treated as "not banned" so a ledger
// outage degrades service quality, not availability.
func (l *Ledger) IsBanned(ctx context.Context, id int64) bool {
	banned, err := l.ListBanned(ctx)
	if err != nil {
		l.log.WithError(err).Warn("Ban list read failed, failing open")
		return false
	}
	for _, b := range banned {
		if b.UserID == id {
			return true
		}
	}
	return false
}

// Ban upserts: re-banning a user refreshes reason and timestamp.
func (l *Ledger) Ban(ctx context.Context, id int64, reason string, by int64) error {
	return l.store.Update(ctx, keyBannedUsers, func(current []byte) ([]byte, error) {
		banned, err := decodeBanned(current)
		if err != nil {
			return nil, err
		}
		record := models.BannedUser{UserID: id, Reason: reason, BannedAt: l.now(), BannedBy: by}
		replaced := false
		for i := range banned {
			if banned[i].UserID == id {
				banned[i] = record
				replaced = true
				break
			}
		}
		if !replaced {
			banned = append(banned, record)
		}
		return json.Marshal(banned)
	})
}

// Unban is an idempotent removal.
func (l *Ledger) Unban(ctx context.Context, id int64) error {
	return l.store.Update(ctx, keyBannedUsers, func(current []byte) ([]byte, error) {
		banned, err := decodeBanned(current)
		if err != nil {
			return nil, err
		}
		kept := banned[:0]
		for _, b := range banned {
			if b.UserID != id {
				kept = append(kept, b)
			}
		}
		return json.Marshal(kept)
	})
}

func (l *Ledger) ListBanned(ctx context.Context) ([]models.BannedUser, error) {
	raw, err := l.store.Get(ctx, keyBannedUsers)
	if err == kv.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeBanned(raw)
}

func decodeBanned(raw []byte) ([]models.BannedUser, error) {
	if raw == nil {
		return nil, nil
	}
	var banned []models.BannedUser
	if err := json.Unmarshal(raw, &banned); err != nil {
		return nil, fmt.Errorf("corrupt ban list: %w", err)
	}
	return banned, nil
}

// UpsertDirectory records that a user interacted with the bot. Called on
// command interactions, not per upload.
func (l *Ledger) UpsertDirectory(ctx context.Context, id int64, username string) error {
	return l.store.Update(ctx, keyUsersList, func(current []byte) ([]byte, error) {
		users, err := decodeDirectory(current)
		if err != nil {
			return nil, err
		}
		now := l.now()
		for i := range users {
			if users[i].UserID == id {
				users[i].Username = username
				users[i].LastSeen = now
				return json.Marshal(users)
			}
		}
		users = append(users, models.DirectoryEntry{
			UserID:    id,
			Username:  username,
			FirstSeen: now,
			LastSeen:  now,
		})
		return json.Marshal(users)
	})
}

func (l *Ledger) ListDirectory(ctx context.Context) ([]models.DirectoryEntry, error) {
	raw, err := l.store.Get(ctx, keyUsersList)
	if err == kv.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeDirectory(raw)
}

func (l *Ledger) ListAllIDs(ctx context.Context) ([]int64, error) {
	users, err := l.ListDirectory(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.UserID)
	}
	return ids, nil
}

func decodeDirectory(raw []byte) ([]models.DirectoryEntry, error) {
	if raw == nil {
		return nil, nil
	}
	var users []models.DirectoryEntry
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("corrupt user directory: %w", err)
	}
	return users, nil
}

// Totals is the service-wide aggregate for admin queries.
type Totals struct {
	TotalUsers   int
	TotalUploads int64
	TotalSize    int64
	BannedUsers  int
}

// AggregateStats folds over every directory entry's stats document. O(users);
// meant for low-frequency admin queries.
func (l *Ledger) AggregateStats(ctx context.Context) (Totals, error) {
	users, err := l.ListDirectory(ctx)
	if err != nil {
		return Totals{}, err
	}

	totals := Totals{TotalUsers: len(users)}
	for _, u := range users {
		stats := l.GetStats(ctx, u.UserID)
		totals.TotalUploads += stats.TotalUploads
		totals.TotalSize += stats.TotalSize
	}

	banned, err := l.ListBanned(ctx)
	if err != nil {
		return totals, err
	}
	totals.BannedUsers = len(banned)
	return totals, nil
}
