package services

import (
	"context"
	"testing"
	"time"

	"coursemarket_echo/internal/models"
	"coursemarket_echo/internal/testutil"
)

func TestEnrollmentLookupFind(t *testing.T) {
	db := testutil.NewDB(t)
	catalog := testutil.SeedCatalog(t, db, "99.90")

	enrollment := models.Enrollment{
		StudentID:  catalog.Student.ID,
		CourseID:   catalog.Course.ID,
		EnrolledAt: time.Now(),
		State:      models.EnrollmentStateEnrolled,
	}
	if err := db.Create(&enrollment).Error; err != nil {
		t.Fatal(err)
	}

	lookup := NewEnrollmentLookup(db)

	tests := []struct {
		name     string
		id       string
		courseID string
		found    bool
	}{
		{name: "by account id", id: catalog.StudentUser.ID, courseID: catalog.Course.ID, found: true},
		{name: "by student profile id", id: catalog.Student.ID, courseID: catalog.Course.ID, found: true},
		{name: "other course", id: catalog.StudentUser.ID, courseID: "another-course", found: false},
		{name: "unknown student", id: "ghost", courseID: catalog.Course.ID, found: false},
		{name: "professor account is not a student", id: catalog.ProfessorUser.ID, courseID: catalog.Course.ID, found: false},
		{name: "empty id", id: "", courseID: catalog.Course.ID, found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lookup.Find(context.Background(), tt.id, tt.courseID)
			if err != nil {
				t.Fatalf("Find returned error: %v", err)
			}
			if tt.found && (got == nil || got.ID != enrollment.ID) {
				t.Errorf("Find(%q) = %+v; want enrollment %s", tt.id, got, enrollment.ID)
			}
			if !tt.found && got != nil {
				t.Errorf("Find(%q) = %+v; want nil", tt.id, got)
			}
		})
	}
}

func TestResolveStudentPrefersAccountID(t *testing.T) {
	db := testutil.NewDB(t)
	catalog := testutil.SeedCatalog(t, db, "10")

	// A second student whose profile id collides with the first student's account id.
	other := models.User{UID: "uid-other", Email: "other@example.com"}
	if err := db.Create(&other).Error; err != nil {
		t.Fatal(err)
	}
	shadow := models.Student{ID: catalog.StudentUser.ID, UserID: other.ID}
	if err := db.Create(&shadow).Error; err != nil {
		t.Fatal(err)
	}

	student, err := resolveStudent(db, catalog.StudentUser.ID)
	if err != nil {
		t.Fatal(err)
	}
	if student.ID != catalog.Student.ID {
		t.Errorf("resolveStudent picked %s; want the account's student %s", student.ID, catalog.Student.ID)
	}
}
