package handlers

import (
	"bytes"
	"encoding/json"
	"strings"
)

// StatusResponse is the acknowledgement returned to the payment gateway.
type StatusResponse struct {
	Status string `json:"status"`
}

// CreatePreferenceRequest is the body of POST /payments/create-preference
type CreatePreferenceRequest struct {
	CourseID string `json:"courseId" validate:"required"`
}

// CreatePreferenceResponse carries what the frontend needs to open the hosted checkout.
type CreatePreferenceResponse struct {
	PreferenceID string `json:"preferenceId"`
	InitPoint    string `json:"initPoint"`
	IsExisting   bool   `json:"isExisting"`
}

// WebhookNotification is the subset of the gateway notification body we read.
type WebhookNotification struct {
	Type   string `json:"type"`
	Topic  string `json:"topic"`
	Action string `json:"action"`
	Data   struct {
		ID NotificationID `json:"id"`
	} `json:"data"`
}

// NotificationID accepts the payment id as either a JSON string or number.
type NotificationID string

func (id *NotificationID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = NotificationID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = NotificationID(n.String())
	return nil
}

// NotificationPreferenceRequest is the body of PUT /me/notification-preference
type NotificationPreferenceRequest struct {
	Channel            string `json:"channel" validate:"required,oneof=email whatsapp none"`
	WhatsappTargetType string `json:"whatsapp_target_type" validate:"omitempty,oneof=personal group"`
	WhatsappGroupID    string `json:"whatsapp_group_id" validate:"max=100"`
}
