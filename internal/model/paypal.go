package model

type PaypalLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type Amount struct {
	Currency string `json:"currency_code"`
	Value    string `json:"value"`
}

type RelatedIDs struct {
	OrderID string `json:"order_id"`
}

type SupplementaryData struct {
	RelatedIDs RelatedIDs `json:"related_ids"`
}

type PaypalResource struct {
	ID                string            `json:"id"`
	Status            string            `json:"status"`
	Amount            *Amount           `json:"amount,omitempty"`
	SupplementaryData SupplementaryData `json:"supplementary_data"`
}

// OrderID returns the checkout order the resource belongs to. Order events carry
// it as the resource id, capture events under supplementary_data.
func (r *PaypalResource) OrderID(eventType string) string {
	if eventType == PaypalEventOrderApproved || eventType == PaypalEventOrderCompleted {
		return r.ID
	}
	return r.SupplementaryData.RelatedIDs.OrderID
}

const (
	PaypalEventOrderApproved   = "CHECKOUT.ORDER.APPROVED"
	PaypalEventOrderCompleted  = "CHECKOUT.ORDER.COMPLETED"
	PaypalEventCaptureComplete = "PAYMENT.CAPTURE.COMPLETED"
)

type PayPalWebhookEvent struct {
	ID         string         `json:"id"`
	EventType  string         `json:"event_type"`
	CreateTime string         `json:"create_time"`
	Resource   PaypalResource `json:"resource"`
}
