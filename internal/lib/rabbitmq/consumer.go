package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
)

// ConsumerMessage запускает потребителя очереди queueName. Каждое сообщение
// обрабатывается handler в отдельной горутине, одновременно не больше
// concurrency. Успешные сообщения подтверждаются, ошибочные отклоняются без
// возврата в очередь. Потребление прекращается при отмене ctx.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, concurrency int,
	log *slog.Logger, handler func(context.Context, []byte) error) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				go func(d amqp.Delivery) {
					defer func() { <-sem }()
					if err := handler(ctx, d.Body); err != nil {
						log.Error("failed to handle message", slog.String("queue", queueName), sl.Err(err))
						if nackErr := d.Nack(false, false); nackErr != nil {
							log.Error("failed to nack message", sl.Err(nackErr))
						}
						return
					}
					if ackErr := d.Ack(false); ackErr != nil {
						log.Error("failed to ack message", sl.Err(ackErr))
					}
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
