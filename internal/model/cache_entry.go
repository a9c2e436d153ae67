package model

import (
	"time"

	"gorm.io/gorm"
)

// CacheEntry is the metadata record for one cached source document.
// The payload bytes live in a file next to the metadata database; the
// entry tracks the stored (compressed) size, which is what eviction
// accounting sums.
type CacheEntry struct {
	// FileID is the stable identity of the source: a cloud provider's
	// file id, or a content hash fallback for local files.
	FileID string `gorm:"primaryKey"`
	// Name is the display name shown in the recent-files list.
	Name string `gorm:"not null"`
	// Size is the stored payload size in bytes.
	Size int64 `gorm:"not null"`
	// RawSize is the uncompressed document size.
	RawSize int64
	// Codec is the compression codec the payload was written with.
	Codec string
	// LastAccess orders eviction, oldest first.
	LastAccess time.Time `gorm:"index;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func ListCacheEntries(db *gorm.DB) ([]*CacheEntry, error) {
	entries := make([]*CacheEntry, 0)
	err := db.Order("last_access asc").Find(&entries).Error
	if err != nil {
		return nil, err
	}

	return entries, nil
}

func GetCacheEntry(db *gorm.DB, fileID string) (*CacheEntry, error) {
	entry := &CacheEntry{}
	err := db.Where("file_id = ?", fileID).First(entry).Error
	if err != nil {
		return nil, err
	}

	return entry, nil
}

func SaveCacheEntry(db *gorm.DB, entry *CacheEntry) error {
	return db.Save(entry).Error
}

func TouchCacheEntry(db *gorm.DB, fileID string, at time.Time) error {
	return db.Model(&CacheEntry{}).Where("file_id = ?", fileID).Update("last_access", at).Error
}

func DeleteCacheEntry(db *gorm.DB, fileID string) error {
	return db.Where("file_id = ?", fileID).Delete(&CacheEntry{}).Error
}

func DeleteAllCacheEntries(db *gorm.DB) error {
	return db.Where("1 = 1").Delete(&CacheEntry{}).Error
}

// CacheUsage sums the stored sizes of all entries.
func CacheUsage(db *gorm.DB) (int64, error) {
	var total int64
	err := db.Model(&CacheEntry{}).Select("coalesce(sum(size), 0)").Scan(&total).Error
	if err != nil {
		return 0, err
	}

	return total, nil
}
