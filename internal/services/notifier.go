package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"coursemarket_echo/internal/models"
	"coursemarket_echo/internal/money"
	"coursemarket_echo/internal/templates"
)

const (
	PurchaseConfirmationTaskName = "send_purchase_confirmation"
	purchaseConfirmationAttempts = 3
	purchaseConfirmationBackoff  = 5 * time.Minute

	purchaseConfirmationScheduleTimeout = 5 * time.Second
)

type EmailSender interface {
	SendEmail(ctx context.Context, to []string, subject, htmlBody string) error
}

type WhatsappSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// TaskScheduler queues background work for the worker.
type TaskScheduler interface {
	Schedule(ctx context.Context, taskName string, args interface{}, due time.Time, maxAttempt int) error
}

// PurchaseConfirmation is everything needed to tell a student their purchase went through.
// It doubles as the argument payload of the retry task.
type PurchaseConfirmation struct {
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	CourseID      string `json:"course_id"`
	CourseTitle   string `json:"course_title"`
	AmountInCents int64  `json:"amount_in_cents"`
	CurrencyID    string `json:"currency_id"`
	PaymentID     string `json:"payment_id"`
}

// PurchaseNotifier sends purchase confirmations over the channel each account prefers.
type PurchaseNotifier struct {
	db          *gorm.DB
	email       EmailSender
	whatsapp    WhatsappSender
	scheduler   TaskScheduler
	frontendURL string
}

// NewPurchaseNotifier builds the notifier. whatsapp and scheduler may be nil.
func NewPurchaseNotifier(db *gorm.DB, email EmailSender, whatsapp WhatsappSender, scheduler TaskScheduler, frontendURL string) *PurchaseNotifier {
	return &PurchaseNotifier{
		db:          db,
		email:       email,
		whatsapp:    whatsapp,
		scheduler:   scheduler,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

func (n *PurchaseNotifier) Name() string {
	return "purchase_confirmation"
}

// AfterCommit sends the confirmation and queues a retry when delivery fails.
func (n *PurchaseNotifier) AfterCommit(ctx context.Context, receipt *Receipt) error {
	msg := PurchaseConfirmation{
		UserID:        receipt.Student.UserID,
		CourseID:      receipt.Course.ID,
		CourseTitle:   receipt.Course.Title,
		AmountInCents: receipt.Payment.AmountInCents,
		CurrencyID:    receipt.Course.CurrencyID,
		PaymentID:     receipt.Payment.ExternalID,
	}
	if u := receipt.Student.User; u != nil {
		msg.Name = u.Name
		msg.Email = u.Email
		msg.Phone = u.Phone
	}

	sendErr := n.Send(ctx, msg)
	if sendErr == nil {
		return nil
	}

	if n.scheduler != nil {
		// the send may have used up ctx; queueing the retry gets its own budget
		scheduleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), purchaseConfirmationScheduleTimeout)
		defer cancel()
		due := time.Now().Add(purchaseConfirmationBackoff)
		if err := n.scheduler.Schedule(scheduleCtx, PurchaseConfirmationTaskName, msg, due, purchaseConfirmationAttempts); err != nil {
			return errors.Join(sendErr, fmt.Errorf("schedule retry: %w", err))
		}
		log.Printf("Purchase confirmation for payment %s failed, retry scheduled at %s", msg.PaymentID, due.Format(time.RFC3339))
	}
	return sendErr
}

// Send delivers one confirmation. Accounts without a preference get email.
func (n *PurchaseNotifier) Send(ctx context.Context, msg PurchaseConfirmation) error {
	var pref models.UserNotifPreference
	err := n.db.WithContext(ctx).Where("user_id = ?", msg.UserID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		pref.Channel = models.NotificationChannelEmail
	} else if err != nil {
		return fmt.Errorf("load notification preference: %w", err)
	}

	switch pref.Channel {
	case models.NotificationChannelNone:
		log.Printf("Notification disabled (none) for user %s", msg.UserID)
		return nil
	case models.NotificationChannelWhatsapp:
		return n.sendWhatsapp(ctx, msg, pref)
	default:
		return n.sendEmail(ctx, msg)
	}
}

func (n *PurchaseNotifier) courseURL(courseID string) string {
	if n.frontendURL == "" {
		return ""
	}
	return n.frontendURL + "/courses/" + courseID
}

func (n *PurchaseNotifier) sendEmail(ctx context.Context, msg PurchaseConfirmation) error {
	if msg.Email == "" {
		return fmt.Errorf("user %s has no email address", msg.UserID)
	}

	body, err := templates.Render(ctx, templates.PurchaseConfirmation(templates.PurchaseConfirmationData{
		StudentName: msg.Name,
		CourseTitle: msg.CourseTitle,
		Amount:      money.ToMajorUnits(msg.AmountInCents).StringFixed(2),
		CurrencyID:  msg.CurrencyID,
		PaymentID:   msg.PaymentID,
		CourseURL:   n.courseURL(msg.CourseID),
	}))
	if err != nil {
		return fmt.Errorf("render confirmation email: %w", err)
	}

	subject := fmt.Sprintf("Payment confirmed: %s", msg.CourseTitle)
	return n.email.SendEmail(ctx, []string{msg.Email}, subject, body)
}

func (n *PurchaseNotifier) sendWhatsapp(ctx context.Context, msg PurchaseConfirmation, pref models.UserNotifPreference) error {
	if n.whatsapp == nil {
		return errors.New("whatsapp channel is not configured")
	}

	var chatID string
	if pref.WhatsappTargetType == models.WhatsappTargetTypeGroup {
		chatID = pref.WhatsappGroupID
		if chatID == "" {
			return fmt.Errorf("group ID is empty")
		}
		if !strings.HasSuffix(chatID, "@g.us") {
			chatID = chatID + "@g.us"
		}
	} else {
		chatID = msg.Phone
		if chatID == "" {
			return fmt.Errorf("user %s has no phone number", msg.UserID)
		}
	}

	text := fmt.Sprintf("Hi %s! Your payment of %s %s for \"%s\" was confirmed and you are enrolled.",
		msg.Name, msg.CurrencyID, money.ToMajorUnits(msg.AmountInCents).StringFixed(2), msg.CourseTitle)
	if url := n.courseURL(msg.CourseID); url != "" {
		text += " Start learning: " + url
	}
	return n.whatsapp.SendMessage(ctx, chatID, text)
}
