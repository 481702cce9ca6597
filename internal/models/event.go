package models

// Event — запрос транспортного уровня, уже разобранный адаптером (HTTP или Lambda).
type Event struct {
	HTTPMethod     string
	Path           string
	PathParameters map[string]string
	Body           []byte
}

// PathParamUserID — имя параметра пути с идентификатором пользователя.
const PathParamUserID = "userId"

// UserID возвращает параметр пути userId или пустую строку.
func (e Event) UserID() string {
	if e.PathParameters == nil {
		return ""
	}
	return e.PathParameters[PathParamUserID]
}

// EventType — тип события жизненного цикла подписки.
type EventType string

const (
	EventSubscriptionCreated   EventType = "subscription.created"
	EventSubscriptionRenewed   EventType = "subscription.renewed"
	EventSubscriptionCancelled EventType = "subscription.cancelled"
)

// SubscriptionEventPayload — тело вебхука от платёжного провайдера.
type SubscriptionEventPayload struct {
	EventID        string        `json:"eventId" validate:"required"`
	EventType      EventType     `json:"eventType" validate:"required,oneof=subscription.created subscription.renewed subscription.cancelled"`
	Timestamp      string        `json:"timestamp" validate:"required,iso8601"`
	Provider       string        `json:"provider" validate:"required"`
	SubscriptionID string        `json:"subscriptionId" validate:"required"`
	PaymentID      string        `json:"paymentId" validate:"required"`
	UserID         string        `json:"userId" validate:"required"`
	CustomerID     string        `json:"customerId" validate:"required"`
	ExpiresAt      string        `json:"expiresAt" validate:"required,iso8601"`
	CancelledAt    string        `json:"cancelledAt,omitempty" validate:"omitempty,iso8601"`
	Metadata       EventMetadata `json:"metadata"`
}

// EventMetadata — метаданные события, относящиеся к плану.
type EventMetadata struct {
	PlanSku       string `json:"planSku" validate:"required"`
	AutoRenew     bool   `json:"autoRenew"`
	PaymentMethod string `json:"paymentMethod" validate:"required"`
}

func (p SubscriptionEventPayload) IsCreated() bool {
	return p.EventType == EventSubscriptionCreated
}

func (p SubscriptionEventPayload) IsRenewed() bool {
	return p.EventType == EventSubscriptionRenewed
}

// IsCancelled сообщает, несёт ли событие отметку об отмене.
// Решает наличие cancelledAt, а не тип события.
func (p SubscriptionEventPayload) IsCancelled() bool {
	return p.CancelledAt != ""
}

// ReconciledEvent публикуется в брокер после того, как событие применено к хранилищу.
type ReconciledEvent struct {
	EventID        string `json:"eventId"`
	EventType      string `json:"eventType"`
	UserID         string `json:"userId"`
	SubscriptionID string `json:"subscriptionId"`
	PlanSku        string `json:"planSku"`
	Outcome        string `json:"outcome"`
	PlanCreated    bool   `json:"planCreated"`
	OccurredAt     string `json:"occurredAt"`
}
