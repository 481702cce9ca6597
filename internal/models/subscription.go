// Package models содержит доменные структуры сервиса: записи подписок и планов
// в key-value хранилище, входящие события платёжного провайдера и
// итоговое представление подписки для чтения.
package models

import "strings"

const (
	// SubscriptionKeyPrefix — префикс partition key записи подписки.
	SubscriptionKeyPrefix = "user:"
	// SubscriptionSortPrefix — префикс sort key записи подписки.
	SubscriptionSortPrefix = "sub:"

	// RecordTypeSubscription — значение поля type у записей подписок.
	RecordTypeSubscription = "subscription"
	// RecordTypePlan — значение поля type у записей планов.
	RecordTypePlan = "plan"
)

// SubscriptionMarker — внутренний маркер состояния, который хранится вместе с подпиской.
// Вычисляемый статус для клиента берётся не из него, а из временных меток (см. Status).
type SubscriptionMarker string

const (
	MarkerActive    SubscriptionMarker = "active"
	MarkerCancelled SubscriptionMarker = "cancelled"
)

// SubscriptionRecord представляет запись подписки пользователя в хранилище.
// Пара PK/SK неизменна после создания; позже меняются только
// LastModified, ExpiresAt, CancelledAt и Status.
type SubscriptionRecord struct {
	PK           string                 `json:"pk" dynamodbav:"pk"`                                       // user:{userId}
	SK           string                 `json:"sk" dynamodbav:"sk"`                                       // sub:{subscriptionId}
	Type         string                 `json:"type" dynamodbav:"type"`                                   // всегда "subscription"
	PlanSku      string                 `json:"planSku" dynamodbav:"planSku"`                             // ссылка на PlanRecord.PK
	StartDate    string                 `json:"startDate" dynamodbav:"startDate"`                         // ISO-8601
	ExpiresAt    string                 `json:"expiresAt" dynamodbav:"expiresAt"`                         // ISO-8601
	CancelledAt  string                 `json:"cancelledAt,omitempty" dynamodbav:"cancelledAt,omitempty"` // пусто, если отмены не было
	LastModified string                 `json:"lastModified" dynamodbav:"lastModified"`                   // ISO-8601
	Status       SubscriptionMarker     `json:"status" dynamodbav:"status"`
	Attributes   SubscriptionAttributes `json:"attributes" dynamodbav:"attributes"`
}

// SubscriptionAttributes — данные провайдера, которые переносятся без интерпретации.
type SubscriptionAttributes struct {
	Provider      string `json:"provider" dynamodbav:"provider"`
	PaymentID     string `json:"paymentId" dynamodbav:"paymentId"`
	CustomerID    string `json:"customerId" dynamodbav:"customerId"`
	AutoRenew     bool   `json:"autoRenew" dynamodbav:"autoRenew"`
	PaymentMethod string `json:"paymentMethod" dynamodbav:"paymentMethod"`
}

// Названия атрибутов, которые меняются частичным обновлением.
const (
	AttrLastModified = "lastModified"
	AttrExpiresAt    = "expiresAt"
	AttrCancelledAt  = "cancelledAt"
	AttrStatus       = "status"
)

// SubscriptionPK возвращает partition key подписки для пользователя.
func SubscriptionPK(userID string) string {
	return SubscriptionKeyPrefix + userID
}

// SubscriptionSK возвращает sort key для идентификатора подписки провайдера.
func SubscriptionSK(subscriptionID string) string {
	return SubscriptionSortPrefix + subscriptionID
}

// UserID извлекает идентификатор пользователя из partition key.
func (r SubscriptionRecord) UserID() string {
	return strings.TrimPrefix(r.PK, SubscriptionKeyPrefix)
}

// SubscriptionID извлекает идентификатор подписки из sort key.
func (r SubscriptionRecord) SubscriptionID() string {
	return strings.TrimPrefix(r.SK, SubscriptionSortPrefix)
}

// IsCancelled сообщает, была ли запрошена отмена.
func (r SubscriptionRecord) IsCancelled() bool {
	return r.CancelledAt != ""
}
