package model

import (
	"time"

	"gorm.io/gorm"
)

// Bookmark persists the last reading position of a source document.
// The key is the stable file identity when one is known, falling back
// to the display name.
type Bookmark struct {
	Key       string `gorm:"primaryKey"`
	PageIndex int    `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func GetBookmark(db *gorm.DB, key string) (*Bookmark, error) {
	bookmark := &Bookmark{}
	err := db.Where("key = ?", key).First(bookmark).Error
	if err != nil {
		return nil, err
	}

	return bookmark, nil
}

func SaveBookmark(db *gorm.DB, bookmark *Bookmark) error {
	return db.Save(bookmark).Error
}

func DeleteAllBookmarks(db *gorm.DB) error {
	return db.Where("1 = 1").Delete(&Bookmark{}).Error
}
