package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"coursemarket_echo/internal/middleware"
	"coursemarket_echo/internal/services"
)

const maxWebhookBody = 1 << 20

// PaymentReconciler turns a gateway payment id into domain effects.
type PaymentReconciler interface {
	Reconcile(ctx context.Context, externalID string) (services.Outcome, error)
}

// CheckoutCreator opens hosted checkouts for a course.
type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, uid, courseID string, forceNew bool) (*services.CheckoutResult, error)
}

type PaymentHandler struct {
	reconciler  PaymentReconciler
	checkout    CheckoutCreator
	webhookLog  *services.WebhookLog
	frontendURL string
}

func NewPaymentHandler(reconciler PaymentReconciler, checkout CheckoutCreator, webhookLog *services.WebhookLog, frontendURL string) *PaymentHandler {
	return &PaymentHandler{
		reconciler:  reconciler,
		checkout:    checkout,
		webhookLog:  webhookLog,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// Webhook receives gateway notifications. It always acknowledges with 200 so the gateway
// stops redelivering; failures are kept in webhook_events for the replay task.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		log.Printf("Webhook: failed to read body: %v", err)
	}

	topic, paymentID := parseNotification(body, c.QueryParams())

	var payload []byte
	if json.Valid(body) {
		payload = body
	}
	event, err := h.webhookLog.Record(ctx, topic, paymentID, payload)
	if err != nil {
		log.Printf("Webhook: failed to record %s notification %s: %v", topic, paymentID, err)
	}

	if topic != "payment" || paymentID == "" {
		log.Printf("Webhook: ignoring notification type=%q id=%q", topic, paymentID)
		if event != nil {
			if err := h.webhookLog.Ignore(ctx, event, "unsupported_topic"); err != nil {
				log.Printf("Webhook: failed to update event %d: %v", event.ID, err)
			}
		}
		return c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
	}

	outcome, reconcileErr := h.reconcile(ctx, paymentID)
	if reconcileErr != nil {
		log.Printf("ERROR Webhook: payment %s not reconciled (%s): %v", paymentID, outcome, reconcileErr)
	}
	if event != nil {
		if err := h.webhookLog.Complete(ctx, event, outcome, reconcileErr); err != nil {
			log.Printf("Webhook: failed to update event %d: %v", event.ID, err)
		}
	}

	return c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

// reconcile keeps a panic in the engine from turning into a 500 for the gateway.
func (h *PaymentHandler) reconcile(ctx context.Context, paymentID string) (outcome services.Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			outcome = services.OutcomeFailed
			err = fmt.Errorf("reconcile panicked: %v", p)
		}
	}()
	return h.reconciler.Reconcile(ctx, paymentID)
}

// parseNotification reads the topic and payment id from the JSON body, falling back
// to the query string used by the gateway's legacy notifications.
func parseNotification(body []byte, query url.Values) (string, string) {
	var n WebhookNotification
	if len(body) > 0 {
		if err := json.Unmarshal(body, &n); err != nil {
			log.Printf("Webhook: body is not a valid notification: %v", err)
		}
	}

	topic := firstNonEmpty(n.Type, n.Topic, query.Get("type"), query.Get("topic"))
	id := firstNonEmpty(string(n.Data.ID), query.Get("data.id"), query.Get("id"))
	return strings.ToLower(strings.TrimSpace(topic)), strings.TrimSpace(id)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// CreatePreference opens a hosted checkout for the authenticated student.
func (h *PaymentHandler) CreatePreference(c echo.Context) error {
	var req CreatePreferenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.CourseID = strings.TrimSpace(req.CourseID)
	if err := c.Validate(&req); err != nil {
		return err
	}

	forceNew := c.QueryParam("force_new") == "true"
	result, err := h.checkout.CreateCheckout(c.Request().Context(), middleware.UserUID(c), req.CourseID, forceNew)
	if err != nil {
		return checkoutError(err)
	}

	return c.JSON(http.StatusOK, CreatePreferenceResponse{
		PreferenceID: result.PreferenceID,
		InitPoint:    result.CheckoutURL,
		IsExisting:   result.IsExisting,
	})
}

func checkoutError(err error) error {
	var gwErr *services.GatewayError
	switch {
	case errors.Is(err, services.ErrAccountNotFound), errors.Is(err, services.ErrCourseNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrCourseNotPurchasable):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrAlreadyEnrolled):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrCheckoutNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &gwErr):
		log.Printf("Checkout: gateway rejected preference: %v", err)
		return echo.NewHTTPError(http.StatusBadGateway, "payment gateway error")
	default:
		return fmt.Errorf("create checkout: %w", err)
	}
}

// CheckoutSuccess handles the gateway's success redirect. It reconciles the payment right away
// so the student does not wait for the webhook, then sends them to the course page.
func (h *PaymentHandler) CheckoutSuccess(c echo.Context) error {
	paymentID := strings.TrimSpace(firstNonEmpty(c.QueryParam("payment_id"), c.QueryParam("collection_id")))
	courseID := strings.TrimSpace(c.QueryParam("course_id"))

	status := "pending"
	if paymentID != "" && paymentID != "null" {
		outcome, err := h.reconcile(c.Request().Context(), paymentID)
		if err != nil {
			log.Printf("Checkout success: payment %s not reconciled yet (%s): %v", paymentID, outcome, err)
		}
		status = redirectStatus(outcome)
	}

	if h.frontendURL == "" {
		return c.JSON(http.StatusOK, map[string]string{"status": status, "course_id": courseID})
	}

	target := h.frontendURL + "/courses"
	if courseID != "" {
		target += "/" + url.PathEscape(courseID)
	}
	return c.Redirect(http.StatusFound, target+"?payment="+status)
}

func redirectStatus(outcome services.Outcome) string {
	switch outcome {
	case services.OutcomeCommitted, services.OutcomeAlreadyProcessed:
		return "success"
	case services.OutcomeNotApproved:
		return "pending"
	case services.OutcomeMalformedReference:
		return "failure"
	default:
		return "processing"
	}
}
