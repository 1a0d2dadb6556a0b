package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"coursemarket_echo/internal/models"
	"coursemarket_echo/internal/testutil"
)

type fakeEmail struct {
	err     error
	hang    bool
	to      []string
	subject string
	body    string
}

func (f *fakeEmail) SendEmail(ctx context.Context, to []string, subject, htmlBody string) error {
	f.to, f.subject, f.body = to, subject, htmlBody
	if f.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

type fakeWhatsapp struct {
	chatID string
	text   string
}

func (f *fakeWhatsapp) SendMessage(ctx context.Context, chatID, text string) error {
	f.chatID, f.text = chatID, text
	return nil
}

type scheduledCall struct {
	name       string
	args       interface{}
	due        time.Time
	maxAttempt int
	ctxErr     error
}

type fakeScheduler struct {
	calls []scheduledCall
}

func (f *fakeScheduler) Schedule(ctx context.Context, taskName string, args interface{}, due time.Time, maxAttempt int) error {
	f.calls = append(f.calls, scheduledCall{taskName, args, due, maxAttempt, ctx.Err()})
	return nil
}

func notifierReceipt(c *testutil.Catalog) *Receipt {
	student := c.Student
	user := c.StudentUser
	student.User = &user
	return &Receipt{
		Payment: models.Payment{ID: "p-1", ExternalID: "pay-1", AmountInCents: 150000},
		Student: student,
		Course:  c.Course,
	}
}

func TestPurchaseNotifierEmailByDefault(t *testing.T) {
	db := testutil.NewDB(t)
	catalog := testutil.SeedCatalog(t, db, "1500.00")
	email := &fakeEmail{}
	scheduler := &fakeScheduler{}

	n := NewPurchaseNotifier(db, email, &fakeWhatsapp{}, scheduler, "https://courses.example.com/")
	if err := n.AfterCommit(context.Background(), notifierReceipt(catalog)); err != nil {
		t.Fatalf("AfterCommit returned error: %v", err)
	}

	if len(email.to) != 1 || email.to[0] != "ana@example.com" {
		t.Errorf("email sent to %v", email.to)
	}
	if !strings.Contains(email.subject, "Go for Backend Engineers") {
		t.Errorf("subject = %q", email.subject)
	}
	if !strings.Contains(email.body, "BRL 1500.00") || !strings.Contains(email.body, "https://courses.example.com/courses/"+catalog.Course.ID) {
		t.Errorf("unexpected body:\n%s", email.body)
	}
	if len(scheduler.calls) != 0 {
		t.Error("no retry should be scheduled after a successful send")
	}
}

func TestPurchaseNotifierFollowsPreference(t *testing.T) {
	tests := []struct {
		name       string
		pref       models.UserNotifPreference
		wantChat   string
		wantEmail  bool
		wantSilent bool
	}{
		{
			name:     "personal whatsapp",
			pref:     models.UserNotifPreference{Channel: models.NotificationChannelWhatsapp, WhatsappTargetType: models.WhatsappTargetTypePersonal},
			wantChat: "5511999990000",
		},
		{
			name:     "group whatsapp",
			pref:     models.UserNotifPreference{Channel: models.NotificationChannelWhatsapp, WhatsappTargetType: models.WhatsappTargetTypeGroup, WhatsappGroupID: "1203634078"},
			wantChat: "1203634078@g.us",
		},
		{
			name:       "disabled",
			pref:       models.UserNotifPreference{Channel: models.NotificationChannelNone},
			wantSilent: true,
		},
		{
			name:      "explicit email",
			pref:      models.UserNotifPreference{Channel: models.NotificationChannelEmail},
			wantEmail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.NewDB(t)
			catalog := testutil.SeedCatalog(t, db, "1500.00")
			tt.pref.UserID = catalog.StudentUser.ID
			if err := db.Create(&tt.pref).Error; err != nil {
				t.Fatal(err)
			}

			email := &fakeEmail{}
			wa := &fakeWhatsapp{}
			n := NewPurchaseNotifier(db, email, wa, &fakeScheduler{}, "")
			if err := n.AfterCommit(context.Background(), notifierReceipt(catalog)); err != nil {
				t.Fatalf("AfterCommit returned error: %v", err)
			}

			if wa.chatID != tt.wantChat {
				t.Errorf("whatsapp chat = %q; want %q", wa.chatID, tt.wantChat)
			}
			if tt.wantChat != "" && !strings.Contains(wa.text, "Go for Backend Engineers") {
				t.Errorf("whatsapp text = %q", wa.text)
			}
			if sent := len(email.to) > 0; sent != tt.wantEmail {
				t.Errorf("email sent = %v; want %v", sent, tt.wantEmail)
			}
			if tt.wantSilent && (wa.chatID != "" || len(email.to) > 0) {
				t.Error("nothing should be sent when notifications are disabled")
			}
		})
	}
}

func TestPurchaseNotifierSchedulesRetryOnFailure(t *testing.T) {
	db := testutil.NewDB(t)
	catalog := testutil.SeedCatalog(t, db, "1500.00")
	email := &fakeEmail{err: errors.New("smtp: 421 service not available")}
	scheduler := &fakeScheduler{}

	n := NewPurchaseNotifier(db, email, nil, scheduler, "")
	err := n.AfterCommit(context.Background(), notifierReceipt(catalog))
	if err == nil {
		t.Fatal("AfterCommit should report the delivery failure")
	}

	if len(scheduler.calls) != 1 {
		t.Fatalf("scheduled %d retries; want 1", len(scheduler.calls))
	}
	call := scheduler.calls[0]
	if call.name != PurchaseConfirmationTaskName || call.maxAttempt != 3 || !call.due.After(time.Now()) {
		t.Errorf("unexpected retry %+v", call)
	}
	msg, ok := call.args.(PurchaseConfirmation)
	if !ok || msg.Email != "ana@example.com" || msg.PaymentID != "pay-1" || msg.AmountInCents != 150000 {
		t.Errorf("retry args = %+v", call.args)
	}
}

func TestPurchaseNotifierSchedulesRetryAfterDeadline(t *testing.T) {
	db := testutil.NewDB(t)
	catalog := testutil.SeedCatalog(t, db, "1500.00")
	scheduler := &fakeScheduler{}

	n := NewPurchaseNotifier(db, &fakeEmail{hang: true}, nil, scheduler, "")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := n.AfterCommit(ctx, notifierReceipt(catalog))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("AfterCommit error = %v; want deadline exceeded", err)
	}
	if len(scheduler.calls) != 1 {
		t.Fatalf("scheduled %d retries; want 1", len(scheduler.calls))
	}
	if scheduler.calls[0].ctxErr != nil {
		t.Errorf("retry scheduled with a finished context: %v", scheduler.calls[0].ctxErr)
	}
}
