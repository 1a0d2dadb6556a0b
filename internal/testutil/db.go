// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"coursemarket_echo/internal/models"
)

// NewDB returns a migrated SQLite database in a temp dir.
// A single connection serialises writers the way one Postgres row lock would.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Catalog is a minimal marketplace: one professor, one student and one course.
type Catalog struct {
	StudentUser   models.User
	Student       models.Student
	ProfessorUser models.User
	Professor     models.Professor
	Course        models.Course
}

// SeedCatalog creates a student, a professor and a course priced at price (major units).
// An empty price leaves the course unpriced.
func SeedCatalog(t *testing.T, db *gorm.DB, price string) *Catalog {
	t.Helper()

	c := &Catalog{
		StudentUser:   models.User{UID: "uid-student", Name: "Ana Souza", Email: "ana@example.com", Phone: "5511999990000", Role: models.UserRoleStudent},
		ProfessorUser: models.User{UID: "uid-professor", Name: "Bruno Lima", Email: "bruno@example.com", Role: models.UserRoleProfessor},
	}
	mustCreate(t, db, &c.StudentUser)
	mustCreate(t, db, &c.ProfessorUser)

	c.Student = models.Student{UserID: c.StudentUser.ID}
	c.Professor = models.Professor{UserID: c.ProfessorUser.ID}
	mustCreate(t, db, &c.Student)
	mustCreate(t, db, &c.Professor)

	c.Course = models.Course{
		Title:       "Go for Backend Engineers",
		Description: "Services, storage and concurrency",
		CurrencyID:  "BRL",
		ProfessorID: c.Professor.ID,
	}
	if price != "" {
		p := decimal.RequireFromString(price)
		c.Course.Price = &p
	}
	mustCreate(t, db, &c.Course)

	return c
}

// Count returns the number of rows of model matching the optional condition.
func Count(t *testing.T, db *gorm.DB, model interface{}, query ...interface{}) int64 {
	t.Helper()

	var n int64
	tx := db.Model(model)
	if len(query) > 0 {
		tx = tx.Where(query[0], query[1:]...)
	}
	if err := tx.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}
