package app

import (
	"encoding/json"
	"time"
)

// Product is an immutable catalog entry. UnitAmount is in minor currency units.
type Product struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	UnitAmount  int64             `json:"unitAmount"`
	Quantity    int64             `json:"quantity"`
	Metadata    map[string]string `json:"metadata"`
}

// Plan is the recurring price offered through CreateSubscription.
type Plan struct {
	ID         string
	Name       string
	UnitAmount int64
	Interval   string
}

type CheckoutRequest struct {
	ProductType string `json:"productType" validate:"required"`
	UserID      string `json:"userId" validate:"required"`
}

type SubscriptionRequest struct {
	UserID string `json:"userId" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
}

type CancelSubscriptionRequest struct {
	SubscriptionID string `json:"subscriptionId" validate:"required"`
}

type VerifyPurchaseRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}

// RefundRequest refunds the full charge when Amount is nil. Amount is in minor units.
type RefundRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required"`
	Amount          *int64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
}

// SessionResponse is returned for both one-time and subscription checkouts.
type SessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// VerifyPurchaseResponse reports whether a checkout session was paid.
// Unpaid sessions only carry Success, Paid and Status.
type VerifyPurchaseResponse struct {
	Success        bool
	Paid           bool
	UserID         string
	ProductType    string
	ProductDetails map[string]string
	Amount         float64
	Status         string
}

type paidPurchaseJSON struct {
	Success        bool              `json:"success"`
	Paid           bool              `json:"paid"`
	UserID         string            `json:"userId"`
	ProductType    string            `json:"productType"`
	ProductDetails map[string]string `json:"productDetails"`
	Amount         float64           `json:"amount"`
}

type unpaidPurchaseJSON struct {
	Success bool   `json:"success"`
	Paid    bool   `json:"paid"`
	Status  string `json:"status"`
}

// MarshalJSON writes the paid shape in full, zero amounts included, and the
// unpaid shape without any purchase details.
func (r VerifyPurchaseResponse) MarshalJSON() ([]byte, error) {
	if !r.Paid {
		return json.Marshal(unpaidPurchaseJSON{Success: r.Success, Paid: r.Paid, Status: r.Status})
	}
	details := r.ProductDetails
	if details == nil {
		details = map[string]string{}
	}
	return json.Marshal(paidPurchaseJSON{
		Success:        r.Success,
		Paid:           r.Paid,
		UserID:         r.UserID,
		ProductType:    r.ProductType,
		ProductDetails: details,
		Amount:         r.Amount,
	})
}

// Purchase is a payment intent projected for the admin history view.
type Purchase struct {
	ID      string    `json:"id"`
	Amount  float64   `json:"amount"`
	Status  string    `json:"status"`
	Created time.Time `json:"created"`
}
