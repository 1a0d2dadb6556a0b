package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"coursemarket_echo/internal/models"
	"coursemarket_echo/internal/testutil"
)

func TestWebhookLogComplete(t *testing.T) {
	tests := []struct {
		outcome    Outcome
		err        error
		wantStatus models.WebhookEventStatus
	}{
		{outcome: OutcomeCommitted, wantStatus: models.WebhookEventStatusProcessed},
		{outcome: OutcomeAlreadyProcessed, wantStatus: models.WebhookEventStatusProcessed},
		{outcome: OutcomeNotApproved, wantStatus: models.WebhookEventStatusIgnored},
		{outcome: OutcomeMalformedReference, wantStatus: models.WebhookEventStatusNeedsReview},
		{outcome: OutcomeFailed, err: errors.New("gateway returned 500: boom"), wantStatus: models.WebhookEventStatusFailed},
		{outcome: OutcomeInFlight, err: ErrReconciliationInFlight, wantStatus: models.WebhookEventStatusFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			db := testutil.NewDB(t)
			wl := NewWebhookLog(db)
			ctx := context.Background()

			event, err := wl.Record(ctx, "payment", "pay-1", []byte(`{"type":"payment","data":{"id":"pay-1"}}`))
			if err != nil {
				t.Fatal(err)
			}
			if err := wl.Complete(ctx, event, tt.outcome, tt.err); err != nil {
				t.Fatal(err)
			}

			var stored models.WebhookEvent
			db.First(&stored, event.ID)
			if stored.Status != tt.wantStatus || stored.Attempts != 1 || stored.Outcome != string(tt.outcome) {
				t.Errorf("stored = %+v; want status %s after one attempt", stored, tt.wantStatus)
			}
			if (tt.err != nil) != (stored.LastError != "") {
				t.Errorf("last error = %q", stored.LastError)
			}
		})
	}
}

func TestWebhookLogFailedAndPurge(t *testing.T) {
	db := testutil.NewDB(t)
	wl := NewWebhookLog(db)
	ctx := context.Background()

	old := time.Now().Add(-60 * 24 * time.Hour)
	seed := []models.WebhookEvent{
		{Topic: "payment", ExternalID: "a", Status: models.WebhookEventStatusFailed, Attempts: 1, CreatedAt: old},
		{Topic: "payment", ExternalID: "b", Status: models.WebhookEventStatusFailed, Attempts: 5},
		{Topic: "payment", ExternalID: "c", Status: models.WebhookEventStatusProcessed, Attempts: 1, CreatedAt: old},
		{Topic: "merchant_order", ExternalID: "d", Status: models.WebhookEventStatusIgnored, CreatedAt: old},
		{Topic: "payment", ExternalID: "e", Status: models.WebhookEventStatusProcessed, Attempts: 1},
		{Topic: "payment", ExternalID: "f", Status: models.WebhookEventStatusNeedsReview, Outcome: string(OutcomeMalformedReference), Attempts: 1, CreatedAt: old},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatal(err)
		}
	}

	failed, err := wl.Failed(ctx, 5, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].ExternalID != "a" {
		t.Errorf("Failed() = %+v; want only the event under the attempt limit", failed)
	}

	purged, err := wl.Purge(ctx, time.Now().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 2 {
		t.Errorf("purged %d; want 2", purged)
	}
	if n := testutil.Count(t, db, &models.WebhookEvent{}); n != 4 {
		t.Errorf("remaining events = %d; want 4", n)
	}
	var review models.WebhookEvent
	if err := db.Where("external_id = ?", "f").First(&review).Error; err != nil {
		t.Errorf("event needing review was purged: %v", err)
	}
}
