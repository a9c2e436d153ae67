package tester

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quire-reader/quire/internal/model"
)

var (
	db   *gorm.DB
	path string
)

// Setup opens a fresh sqlite database in a private temp directory and
// runs the migrations. Each test package gets its own directory, so
// packages can run in parallel.
func Setup() {
	RemoveDBFile()

	_ = os.Setenv("ENV", "test")

	dir, err := os.MkdirTemp("", "quire-test-")
	if err != nil {
		panic(err)
	}
	path = dir

	db, err = gorm.Open(sqlite.Open(filepath.Join(dir, "quire.db")), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	err = model.Migrate(db)
	if err != nil {
		panic(err)
	}
}

func TestDB() *gorm.DB {
	return db
}

func RemoveDBFile() {
	if path == "" {
		return
	}

	err := os.RemoveAll(path)
	if err != nil {
		panic(err)
	}
	path = ""
}
