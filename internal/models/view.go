package models

// Status — вычисленный статус подписки, отдаваемый клиенту.
type Status string

const (
	StatusActive    Status = "active"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
)

// SubscriptionView — плоское представление подписки вместе с планом.
type SubscriptionView struct {
	UserID         string         `json:"userId"`
	SubscriptionID string         `json:"subscriptionId"`
	Plan           PlanView       `json:"plan"`
	StartDate      string         `json:"startDate"`
	ExpiresAt      string         `json:"expiresAt"`
	Status         Status         `json:"status"`
	Attributes     ViewAttributes `json:"attributes"`
	CancelledAt    string         `json:"cancelledAt,omitempty"`
}

type PlanView struct {
	Sku          string       `json:"sku"`
	Name         string       `json:"name"`
	Price        float64      `json:"price"`
	Currency     string       `json:"currency"`
	BillingCycle BillingCycle `json:"billingCycle"`
	Features     []string     `json:"features"`
}

type ViewAttributes struct {
	AutoRenew     bool   `json:"autoRenew"`
	PaymentMethod string `json:"paymentMethod"`
}
