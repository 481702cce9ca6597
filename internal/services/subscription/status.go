package subscription

import (
	"fmt"

	"github.com/magabrotheeeer/subscription-webhook/internal/lib/isotime"
	"github.com/magabrotheeeer/subscription-webhook/internal/models"
)

// ComputeStatus вычисляет статус подписки по временным меткам записи.
//
// Без cancelledAt подписка активна. Иначе границей служит expiresAt:
// lastModified <= expiresAt означает ожидающую отмену, позже — отменённую.
func ComputeStatus(rec models.SubscriptionRecord) (models.Status, error) {
	const op = "services.subscription.ComputeStatus"

	if !rec.IsCancelled() {
		return models.StatusActive, nil
	}

	lastModified, err := isotime.Parse(rec.LastModified)
	if err != nil {
		return "", fmt.Errorf("%s: lastModified: %w", op, err)
	}
	expiresAt, err := isotime.Parse(rec.ExpiresAt)
	if err != nil {
		return "", fmt.Errorf("%s: expiresAt: %w", op, err)
	}

	if lastModified.After(expiresAt) {
		return models.StatusCancelled, nil
	}
	return models.StatusPending, nil
}
