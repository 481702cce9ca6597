package models

// BillingCycle — период списания по плану.
type BillingCycle string

const (
	BillingMonthly BillingCycle = "monthly"
	BillingYearly  BillingCycle = "yearly"
)

// PlanStatus — доступность плана для новых и продлеваемых подписок.
type PlanStatus string

const (
	PlanActive   PlanStatus = "active"
	PlanInactive PlanStatus = "inactive"
)

// PlanRecord представляет тарифный план в хранилище.
// PK — SKU плана, SK — способ оплаты. Сервис только создаёт планы и никогда их не меняет.
type PlanRecord struct {
	PK           string       `json:"pk" dynamodbav:"pk"`
	SK           string       `json:"sk" dynamodbav:"sk"`
	Type         string       `json:"type" dynamodbav:"type"`
	Name         string       `json:"name" dynamodbav:"name"`
	Price        float64      `json:"price" dynamodbav:"price"`
	Currency     string       `json:"currency" dynamodbav:"currency"`
	BillingCycle BillingCycle `json:"billingCycle" dynamodbav:"billingCycle"`
	Features     []string     `json:"features" dynamodbav:"features"`
	Status       PlanStatus   `json:"status" dynamodbav:"status"`
}

// IsActive сообщает, можно ли оформлять подписки на план.
func (p PlanRecord) IsActive() bool {
	return p.Status == PlanActive
}
