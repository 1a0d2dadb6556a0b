package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"coursemarket_echo/internal/models"
)

// EnrollmentLookup answers "is this student already enrolled in this course".
// Callers may hold either an account id or a student profile id.
type EnrollmentLookup struct {
	db *gorm.DB
}

func NewEnrollmentLookup(db *gorm.DB) *EnrollmentLookup {
	return &EnrollmentLookup{db: db}
}

// WithTx returns a lookup bound to an open transaction.
func (l *EnrollmentLookup) WithTx(tx *gorm.DB) *EnrollmentLookup {
	return &EnrollmentLookup{db: tx}
}

// Find returns the enrollment for the student and course, or nil when there is none.
// An unknown student is reported as no enrollment.
func (l *EnrollmentLookup) Find(ctx context.Context, userOrStudentID, courseID string) (*models.Enrollment, error) {
	db := l.db.WithContext(ctx)

	student, err := resolveStudent(db, userOrStudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var enrollment models.Enrollment
	err = db.Where("student_id = ? AND course_id = ?", student.ID, courseID).First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &enrollment, nil
}

// resolveStudent interprets id as an account id first and falls back to a student profile id.
func resolveStudent(db *gorm.DB, id string) (*models.Student, error) {
	if id == "" {
		return nil, gorm.ErrRecordNotFound
	}

	var byAccount models.Student
	err := db.Preload("User").Where("user_id = ?", id).First(&byAccount).Error
	if err == nil {
		return &byAccount, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var byProfile models.Student
	if err := db.Preload("User").Where("id = ?", id).First(&byProfile).Error; err != nil {
		return nil, err
	}
	return &byProfile, nil
}
