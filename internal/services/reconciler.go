package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coursemarket_echo/internal/models"
	"coursemarket_echo/internal/money"
)

// Outcome is the terminal state of one reconciliation attempt.
type Outcome string

const (
	OutcomeCommitted          Outcome = "committed"
	OutcomeNotApproved        Outcome = "not_approved"
	OutcomeMalformedReference Outcome = "malformed_reference"
	OutcomeAlreadyProcessed   Outcome = "already_processed"
	OutcomeInFlight           Outcome = "in_flight"
	OutcomeFailed             Outcome = "failed"
)

const defaultHookTimeout = 15 * time.Second

// ErrReconciliationInFlight is returned when another worker holds the lock for the same payment.
var ErrReconciliationInFlight = errors.New("reconciliation already in progress for this payment")

// errPaymentRecorded means the unique index on external_id rejected our insert.
var errPaymentRecorded = errors.New("payment already recorded")

// ReconciliationDataError means the payment cannot be committed with the data we hold,
// e.g. the student or course is unknown or the course has no price.
type ReconciliationDataError struct {
	Reason string
	Err    error
}

func (e *ReconciliationDataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reconciliation data error: %s: %v", e.Reason, e.Err)
	}
	return "reconciliation data error: " + e.Reason
}

func (e *ReconciliationDataError) Unwrap() error {
	return e.Err
}

// MalformedReferenceError means the external reference cannot identify a user and a course.
type MalformedReferenceError struct {
	Reference string
	Reason    string
}

func (e *MalformedReferenceError) Error() string {
	return fmt.Sprintf("malformed external reference %q: %s", e.Reference, e.Reason)
}

// ExternalReference is the payload round-tripped through the gateway to tie a payment to a purchase.
type ExternalReference struct {
	UserID   string `json:"userId"`
	CourseID string `json:"courseId"`
}

func (r ExternalReference) String() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// ParseExternalReference decodes a reference and requires both ids.
func ParseExternalReference(raw string) (ExternalReference, error) {
	var ref ExternalReference

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ref, &MalformedReferenceError{Reference: raw, Reason: "reference is empty"}
	}
	if !strings.HasPrefix(trimmed, "{") {
		return ref, &MalformedReferenceError{Reference: raw, Reason: "reference is not a JSON object"}
	}
	if err := json.Unmarshal([]byte(trimmed), &ref); err != nil {
		return ExternalReference{}, &MalformedReferenceError{Reference: raw, Reason: err.Error()}
	}

	ref.UserID = strings.TrimSpace(ref.UserID)
	ref.CourseID = strings.TrimSpace(ref.CourseID)
	switch {
	case ref.UserID == "":
		return ExternalReference{}, &MalformedReferenceError{Reference: raw, Reason: "userId is missing"}
	case ref.CourseID == "":
		return ExternalReference{}, &MalformedReferenceError{Reference: raw, Reason: "courseId is missing"}
	}
	return ref, nil
}

// Receipt describes what a successful commit wrote. It is handed to post-commit hooks.
type Receipt struct {
	Payment           models.Payment
	Earnings          []models.Earning
	Enrollment        models.Enrollment
	EnrollmentCreated bool
	Student           models.Student
	Course            models.Course
}

// PostCommitHook runs after the reconciliation transaction has committed.
// Errors are logged and never change the reconciliation outcome.
type PostCommitHook interface {
	Name() string
	AfterCommit(ctx context.Context, receipt *Receipt) error
}

// IdempotencyGuard is a fast, best-effort dedup layer in front of the database.
// The unique index on payments.external_id stays authoritative.
type IdempotencyGuard interface {
	IsProcessed(ctx context.Context, externalID string) (bool, error)
	MarkProcessed(ctx context.Context, externalID string) error
	Acquire(ctx context.Context, externalID string) (release func(), acquired bool, err error)
}

type ReconcilerOption func(*Reconciler)

func WithLogger(l *log.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.logger = l }
}

func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

func WithGuard(g IdempotencyGuard) ReconcilerOption {
	return func(r *Reconciler) { r.guard = g }
}

func WithMetrics(m *ReconcileMetrics) ReconcilerOption {
	return func(r *Reconciler) { r.metrics = m }
}

func WithHooks(hooks ...PostCommitHook) ReconcilerOption {
	return func(r *Reconciler) { r.hooks = append(r.hooks, hooks...) }
}

// WithHookTimeout bounds the time all post-commit hooks of one payment may take together.
func WithHookTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) { r.hookTimeout = d }
}

// Reconciler turns gateway payment notifications into exactly one Payment,
// its two Earnings and an Enrollment.
type Reconciler struct {
	db            *gorm.DB
	gateway       PaymentFetcher
	enrollments   *EnrollmentLookup
	earnerPercent decimal.Decimal

	logger  *log.Logger
	now     func() time.Time
	guard   IdempotencyGuard
	metrics *ReconcileMetrics
	hooks   []PostCommitHook

	hookTimeout time.Duration
}

// NewReconciler builds a reconciler. earnerPercent is the instructor's fraction of each sale (0.97 for a 3% fee).
func NewReconciler(db *gorm.DB, gateway PaymentFetcher, earnerPercent decimal.Decimal, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		db:            db,
		gateway:       gateway,
		enrollments:   NewEnrollmentLookup(db),
		earnerPercent: earnerPercent,
		logger:        log.Default(),
		now:           time.Now,
		hookTimeout:   defaultHookTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile processes one gateway payment id. No-op outcomes (not approved,
// malformed reference, already processed) return a nil error.
func (r *Reconciler) Reconcile(ctx context.Context, externalID string) (outcome Outcome, err error) {
	start := time.Now()
	defer func() { r.metrics.observe(outcome, time.Since(start)) }()

	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return OutcomeFailed, errors.New("payment id is required")
	}

	if r.guard != nil {
		done, err := r.guard.IsProcessed(ctx, externalID)
		if err != nil {
			r.logger.Printf("Reconcile %s: idempotency guard unavailable: %v", externalID, err)
		} else if done {
			r.logger.Printf("Reconcile %s: already processed (cached)", externalID)
			return OutcomeAlreadyProcessed, nil
		}

		release, acquired, err := r.guard.Acquire(ctx, externalID)
		switch {
		case err != nil:
			r.logger.Printf("Reconcile %s: could not take lock, continuing without it: %v", externalID, err)
		case !acquired:
			return OutcomeInFlight, ErrReconciliationInFlight
		default:
			defer release()
		}
	}

	// Stage A: fetch and triage. Nothing is written here.
	payment, err := r.gateway.GetPayment(ctx, externalID)
	if err != nil {
		r.logger.Printf("Reconcile %s: failed to fetch payment: %v", externalID, err)
		return OutcomeFailed, fmt.Errorf("fetch payment %s: %w", externalID, err)
	}

	if payment.Status != GatewayStatusApproved {
		r.logger.Printf("Reconcile %s: status %q (%s), nothing to do", externalID, payment.Status, payment.StatusDetail)
		return OutcomeNotApproved, nil
	}

	ref, err := ParseExternalReference(payment.ExternalReference)
	if err != nil {
		r.logger.Printf("ERROR Reconcile %s: needs manual follow-up: %v", externalID, err)
		return OutcomeMalformedReference, nil
	}

	var existing int64
	if err := r.db.WithContext(ctx).Model(&models.Payment{}).Where("external_id = ?", externalID).Count(&existing).Error; err != nil {
		return OutcomeFailed, fmt.Errorf("check payment %s: %w", externalID, err)
	}
	if existing > 0 {
		r.logger.Printf("Reconcile %s: already processed", externalID)
		r.markProcessed(ctx, externalID)
		return OutcomeAlreadyProcessed, nil
	}

	// Stage B: one transaction.
	receipt, err := r.commit(ctx, externalID, ref, payment)
	if errors.Is(err, errPaymentRecorded) {
		r.logger.Printf("Reconcile %s: lost the race to a concurrent delivery, already processed", externalID)
		r.markProcessed(ctx, externalID)
		return OutcomeAlreadyProcessed, nil
	}
	if err != nil {
		r.logger.Printf("Reconcile %s: rolled back: %v", externalID, err)
		return OutcomeFailed, err
	}

	r.logger.Printf("Reconcile %s: committed payment %s (%d cents) for student %s, course %s",
		externalID, receipt.Payment.ID, receipt.Payment.AmountInCents, receipt.Student.ID, receipt.Course.ID)
	r.markProcessed(ctx, externalID)

	// Stage C: post-commit side effects.
	r.runHooks(ctx, receipt)

	return OutcomeCommitted, nil
}

func (r *Reconciler) commit(ctx context.Context, externalID string, ref ExternalReference, gp *GatewayPayment) (*Receipt, error) {
	now := r.now()
	var receipt *Receipt

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		student, err := resolveStudent(tx, ref.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ReconciliationDataError{Reason: fmt.Sprintf("student for %q not found", ref.UserID), Err: err}
			}
			return err
		}

		var course models.Course
		if err := tx.Where("id = ?", ref.CourseID).First(&course).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ReconciliationDataError{Reason: fmt.Sprintf("course %q not found", ref.CourseID), Err: err}
			}
			return err
		}
		if !course.IsPriced() {
			return &ReconciliationDataError{Reason: fmt.Sprintf("course %q has no price", course.ID)}
		}
		if course.ProfessorID == "" {
			return &ReconciliationDataError{Reason: fmt.Sprintf("course %q has no instructor", course.ID)}
		}

		amount := money.ToMinorUnits(*course.Price)
		payment := models.Payment{
			ExternalID:    externalID,
			AmountInCents: amount,
			Status:        models.PaymentStatusApproved,
			CourseID:      course.ID,
			StudentID:     student.ID,
			ApprovedAt:    &now,
			Metadata:      datatypes.JSON(gp.Raw),
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}).Create(&payment)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return errPaymentRecorded
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errPaymentRecorded
		}

		share := money.SplitShare(amount, r.earnerPercent)
		professorID := course.ProfessorID
		earnings := []models.Earning{
			{
				Type:          models.EarningTypeEarnerShare,
				AmountInCents: share.EarnerCents,
				PaymentID:     payment.ID,
				ProfessorID:   &professorID,
				Status:        models.EarningStatusPending,
			},
			{
				Type:          models.EarningTypePlatformFee,
				AmountInCents: share.PlatformCents,
				PaymentID:     payment.ID,
				Status:        models.EarningStatusPending,
			},
		}
		if err := tx.Create(&earnings).Error; err != nil {
			return fmt.Errorf("create earnings: %w", err)
		}

		enrollment, created, err := r.ensureEnrollment(ctx, tx, ref.UserID, student, &course, now)
		if err != nil {
			return err
		}
		if created {
			payment.EnrollmentID = &enrollment.ID
			if err := tx.Model(&payment).Update("enrollment_id", enrollment.ID).Error; err != nil {
				return fmt.Errorf("link enrollment: %w", err)
			}
		} else {
			r.logger.Printf("WARN Reconcile %s: student %s already enrolled in course %s, keeping existing enrollment",
				externalID, student.ID, course.ID)
		}

		if gp.ExternalReference != "" {
			if err := tx.Model(&models.CheckoutSession{}).
				Where("external_reference = ? AND is_active = ?", gp.ExternalReference, true).
				Update("is_active", false).Error; err != nil {
				return fmt.Errorf("close checkout sessions: %w", err)
			}
		}

		receipt = &Receipt{
			Payment:           payment,
			Earnings:          earnings,
			Enrollment:        *enrollment,
			EnrollmentCreated: created,
			Student:           *student,
			Course:            course,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ensureEnrollment returns the existing enrollment, or creates one and adds the course
// to the student's enrolled courses.
func (r *Reconciler) ensureEnrollment(ctx context.Context, tx *gorm.DB, userOrStudentID string, student *models.Student, course *models.Course, now time.Time) (*models.Enrollment, bool, error) {
	existing, err := r.enrollments.WithTx(tx).Find(ctx, userOrStudentID, course.ID)
	if err != nil {
		return nil, false, fmt.Errorf("find enrollment: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	enrollment := models.Enrollment{
		StudentID:  student.ID,
		CourseID:   course.ID,
		EnrolledAt: now,
		State:      models.EnrollmentStateEnrolled,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&enrollment)
	if res.Error != nil {
		return nil, false, fmt.Errorf("create enrollment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// A free enrollment landed between the lookup and the insert.
		var current models.Enrollment
		if err := tx.Where("student_id = ? AND course_id = ?", student.ID, course.ID).First(&current).Error; err != nil {
			return nil, false, fmt.Errorf("reload enrollment: %w", err)
		}
		return &current, false, nil
	}

	if err := tx.Model(student).Association("EnrolledCourses").Append(course); err != nil {
		return nil, false, fmt.Errorf("add enrolled course: %w", err)
	}
	return &enrollment, true, nil
}

func (r *Reconciler) runHooks(ctx context.Context, receipt *Receipt) {
	if len(r.hooks) == 0 {
		return
	}

	// the payment is committed: a caller that hangs up must not cancel its side effects
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.hookTimeout)
	defer cancel()

	for _, hook := range r.hooks {
		if err := r.runHook(ctx, hook, receipt); err != nil {
			r.metrics.hookFailed(hook.Name())
			r.logger.Printf("Reconcile %s: post-commit hook %s failed: %v", receipt.Payment.ExternalID, hook.Name(), err)
		}
	}
}

func (r *Reconciler) runHook(ctx context.Context, hook PostCommitHook, receipt *Receipt) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return hook.AfterCommit(ctx, receipt)
}

func (r *Reconciler) markProcessed(ctx context.Context, externalID string) {
	if r.guard == nil {
		return
	}
	if err := r.guard.MarkProcessed(ctx, externalID); err != nil {
		r.logger.Printf("Reconcile %s: failed to cache processed marker: %v", externalID, err)
	}
}
