package kv

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sdko-org/filebed-relay/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps documents in the kv_records table. The per-key mutex
// serializes Update within this process only; concurrent writers in other
// processes can still lose updates (get-then-put, no compare-and-swap).
type GormStore struct {
	db  *gorm.DB
	log *logrus.Entry

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGormStore(logger *logrus.Logger, db *gorm.DB) *GormStore {
	return &GormStore{
		db:    db,
		log:   logger.WithField("component", "kv_store"),
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var record models.KVRecord
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record.Value, nil
}

func (s *GormStore) Put(ctx context.Context, key string, value []byte) error {
	record := models.KVRecord{
		Key:           key,
		Value:         value,
		SchemaVersion: models.SchemaVersion,
		UpdatedAt:     time.Now(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "schema_version", "updated_at"}),
		}).
		Create(&record).Error
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.KVRecord{}).Error
}

func (s *GormStore) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	return s.Put(ctx, key, next)
}

func (s *GormStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}
