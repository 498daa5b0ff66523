package database

import "gorm.io/gorm"

var DB *gorm.DB

// GetDB returns the shared database handle, connecting on first use.
func GetDB() *gorm.DB {
	if DB == nil {
		SetupDatabase()
	}
	return DB
}
