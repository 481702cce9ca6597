package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// ReconciliationQueues — очереди, которые получают уведомления о подписках.
func ReconciliationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "subscriptions.audit", RoutingKey: "subscription.#"},
		{QueueName: "subscriptions.cancelled", RoutingKey: "subscription.cancelled_updated"},
	}
}

// SetupChannel открывает канал и объявляет topic exchange с привязанными очередями.
func SetupChannel(conn *amqp.Connection, exchange string, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			q.QueueName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}

		err = ch.QueueBind(
			q.QueueName,
			q.RoutingKey,
			exchange,
			false,
			nil,
		)
		if err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
