package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&CacheEntry{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&Bookmark{}); err != nil {
		return err
	}

	return nil
}
