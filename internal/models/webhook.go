package models

// WebhookEvent is the envelope the payment processor posts to the webhook
// endpoint. Correlation back to a booking runs through the object's
// metadata; the processor knows nothing else about bookings.
type WebhookEvent struct {
	ID   string           `json:"id"`
	Type string           `json:"type"`
	Data WebhookEventData `json:"data"`
}

// WebhookEventData wraps the event's subject object
type WebhookEventData struct {
	Object WebhookObject `json:"object"`
}

// WebhookObject is the payment intent or refund the event describes
type WebhookObject struct {
	ID              string            `json:"id"`
	Status          string            `json:"status"`
	PaymentIntentID string            `json:"payment_intent_id,omitempty"` // set on refund objects
	FailureReason   *string           `json:"failure_reason,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Webhook event types emitted by the processor
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventRefundSucceeded  = "refund.succeeded"
	EventRefundFailed     = "refund.failed"
)

// BookingID extracts the booking correlation from the object metadata
func (o *WebhookObject) BookingID() string {
	return o.Metadata["booking_id"]
}

// IntentID returns the payment intent the event concerns: the object itself
// for intent events, the parent intent for refund events.
func (o *WebhookObject) IntentID() string {
	if o.PaymentIntentID != "" {
		return o.PaymentIntentID
	}
	return o.ID
}
