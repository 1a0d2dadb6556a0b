package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"gorm.io/gorm"

	"coursemarket_echo/internal/models"
)

var (
	ErrCheckoutNotConfigured = errors.New("checkout is not configured")
	ErrAccountNotFound       = errors.New("account not found")
	ErrCourseNotFound        = errors.New("course not found")
	ErrCourseNotPurchasable  = errors.New("course is free or has no price")
	ErrAlreadyEnrolled       = errors.New("already enrolled in this course")
)

type CheckoutResult struct {
	PreferenceID string
	CheckoutURL  string
	IsExisting   bool
}

// CheckoutService starts hosted checkouts for paid courses.
type CheckoutService struct {
	db          *gorm.DB
	gateway     PreferenceCreator
	enrollments *EnrollmentLookup
	frontendURL string
	backendURL  string

	defaultCurrency string
}

func NewCheckoutService(db *gorm.DB, gateway PreferenceCreator, frontendURL, backendURL string) *CheckoutService {
	return &CheckoutService{
		db:          db,
		gateway:     gateway,
		enrollments: NewEnrollmentLookup(db),
		frontendURL: strings.TrimRight(frontendURL, "/"),
		backendURL:  strings.TrimRight(backendURL, "/"),

		defaultCurrency: "BRL",
	}
}

// WithDefaultCurrency sets the currency charged for courses that have none.
func (s *CheckoutService) WithDefaultCurrency(currencyID string) *CheckoutService {
	if currencyID = strings.TrimSpace(currencyID); currencyID != "" {
		s.defaultCurrency = strings.ToUpper(currencyID)
	}
	return s
}

// ActiveSession returns the newest active session for an external reference, or nil.
func (s *CheckoutService) ActiveSession(ctx context.Context, externalReference string) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := s.db.WithContext(ctx).
		Where("external_reference = ? AND is_active = ?", externalReference, true).
		Order("created_at desc").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// CreateCheckout returns a checkout URL for the course. An active session for the same
// user and course is reused unless forceNew is set.
func (s *CheckoutService) CreateCheckout(ctx context.Context, uid, courseID string, forceNew bool) (*CheckoutResult, error) {
	if s.gateway == nil || s.frontendURL == "" || s.backendURL == "" {
		return nil, ErrCheckoutNotConfigured
	}

	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Where("uid = ?", uid).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	var course models.Course
	if err := db.Where("id = ?", courseID).First(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	if !course.IsPriced() {
		return nil, ErrCourseNotPurchasable
	}

	enrollment, err := s.enrollments.Find(ctx, user.ID, course.ID)
	if err != nil {
		return nil, err
	}
	if enrollment != nil {
		return nil, ErrAlreadyEnrolled
	}

	ref := ExternalReference{UserID: user.ID, CourseID: course.ID}.String()

	existing, err := s.ActiveSession(ctx, ref)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !forceNew && existing.PreferenceID != "" && existing.CheckoutURL != "" {
			return &CheckoutResult{
				PreferenceID: existing.PreferenceID,
				CheckoutURL:  existing.CheckoutURL,
				IsExisting:   true,
			}, nil
		}
		if err := db.Model(&models.CheckoutSession{}).
			Where("external_reference = ? AND is_active = ?", ref, true).
			Update("is_active", false).Error; err != nil {
			return nil, err
		}
	}

	currencyID := course.CurrencyID
	if currencyID == "" {
		currencyID = s.defaultCurrency
	}

	input := PreferenceInput{
		Item: PreferenceItem{
			ID:          course.ID,
			Title:       course.Title,
			Description: course.Description,
			UnitPrice:   *course.Price,
			CurrencyID:  currencyID,
		},
		BackURLs: BackURLs{
			Success: s.backendURL + "/payments/success?course_id=" + url.QueryEscape(course.ID),
			Failure: s.frontendURL + "/courses/" + url.PathEscape(course.ID) + "?payment=failure",
			Pending: s.frontendURL + "/courses/" + url.PathEscape(course.ID) + "?payment=pending",
		},
		ExternalReference: ref,
		NotificationURL:   s.backendURL + "/payments/webhook",
	}

	pref, err := s.gateway.CreatePreference(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}

	reqBytes, _ := json.Marshal(input)
	respBytes, _ := json.Marshal(pref)

	session := models.CheckoutSession{
		UserID:            user.ID,
		CourseID:          course.ID,
		ExternalReference: ref,
		PreferenceID:      pref.ID,
		CheckoutURL:       pref.CheckoutURL,
		IsActive:          true,
		RequestMetadata:   reqBytes,
		ResponseMetadata:  respBytes,
	}
	if err := db.Create(&session).Error; err != nil {
		return nil, fmt.Errorf("save checkout session: %w", err)
	}

	return &CheckoutResult{
		PreferenceID: pref.ID,
		CheckoutURL:  pref.CheckoutURL,
	}, nil
}
