package models

import (
	"time"
)

// SchemaVersion is stamped on every key-value record so future layout
// changes can migrate documents in place.
const SchemaVersion = 1

// KVRecord is one serialized document in the key-value table. The ledger
// owns all keys; nothing else writes this table.
type KVRecord struct {
	Key           string    `gorm:"primaryKey;type:varchar(128);not null"`
	Value         []byte    `gorm:"type:jsonb;not null"`
	SchemaVersion int       `gorm:"not null;default:1"`
	UpdatedAt     time.Time `gorm:"index;not null"`
}

type AccessLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"index;not null"`
	Method    string    `gorm:"type:varchar(10);not null"`
	Path      string    `gorm:"type:text;not null;index:,length:256"`
	Status    int       `gorm:"not null;index"`
	Duration  time.Duration
	ClientIP  string `gorm:"type:varchar(45);not null"`
	UserAgent string `gorm:"type:text"`
	BytesSent int    `gorm:"not null;default:0"`
}

func (KVRecord) TableName() string {
	return "kv_records"
}

func (AccessLog) TableName() string {
	return "access_logs"
}

// File type categories tracked in UserStats.FileTypes.
const (
	TypeImage     = "image"
	TypeVideo     = "video"
	TypeAudio     = "audio"
	TypeAnimation = "animation"
	TypeDocument  = "document"
	TypeOther     = "other"
)

// UserStats is the per-user usage document, stored under user_stats_<id>.
// Mutated only through the ledger's Record path.
type UserStats struct {
	TotalUploads      int64                `json:"totalUploads"`
	SuccessfulUploads int64                `json:"successfulUploads"`
	FailedUploads     int64                `json:"failedUploads"`
	TotalSize         int64                `json:"totalSize"`
	FileTypes         map[string]int64     `json:"fileTypes"`
	DailyData         map[string]DailyStat `json:"dailyData"`
	UploadHistory     []HistoryEntry       `json:"uploadHistory"`
	CreatedAt         time.Time            `json:"createdAt"`
}

type DailyStat struct {
	Uploads    int64 `json:"uploads"`
	Size       int64 `json:"size"`
	Successful int64 `json:"successful"`
	Failed     int64 `json:"failed"`
}

// HistoryEntry is one recorded successful upload. Entries are appended
// newest-first and never mutated, only deleted by ID.
type HistoryEntry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	FileName     string    `json:"fileName"`
	FileType     string    `json:"fileType"`
	FileSize     int64     `json:"fileSize"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Description  string    `json:"description,omitempty"`
}

type BannedUser struct {
	UserID   int64     `json:"userId"`
	Reason   string    `json:"reason"`
	BannedAt time.Time `json:"bannedAt"`
	BannedBy int64     `json:"bannedBy"`
}

// DirectoryEntry tracks a user the bot has interacted with. Upserted on
// command interactions, not on every upload.
type DirectoryEntry struct {
	UserID    int64     `json:"userId"`
	Username  string    `json:"username"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}
