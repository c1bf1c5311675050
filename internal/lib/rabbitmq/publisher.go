package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

// PublishMessage сериализует message в JSON и публикует его.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AccountPublisher публикует изменения аккаунтов в AccountsExchange.
// amqp.Channel не безопасен для конкурентной публикации, поэтому вызовы
// сериализуются.
type AccountPublisher struct {
	mu sync.Mutex
	ch *amqp.Channel
}

// NewAccountPublisher создаёт AccountPublisher поверх настроенного канала.
func NewAccountPublisher(ch *amqp.Channel) *AccountPublisher {
	return &AccountPublisher{ch: ch}
}

// PublishAccountChange публикует изменение поля scheduled_for_deletion_at.
func (p *AccountPublisher) PublishAccountChange(ctx context.Context, change models.AccountChange) error {
	const op = "rabbitmq.PublishAccountChange"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := PublishMessage(p.ch, AccountsExchange, AccountUpdatedKey, change); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
