// Package queue carries wallet-cascade jobs over AMQP so wallet deletion
// stays fast while the transaction sweep happens in the background.
package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,
		c.queueName, // routing key, same as queue name for a direct exchange
		c.exchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// PublishCascade enqueues a cascade job for walletID. Satisfies
// ledger.CascadePublisher.
func (c *Client) PublishCascade(ctx context.Context, walletID string) error {
	body, err := NewCascadeMessage(walletID).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal cascade message: %w", err)
	}

	err = c.channel.PublishWithContext(ctx,
		c.exchangeName,
		c.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish cascade message: %w", err)
	}
	return nil
}

// Consume delivers cascade messages to handler until ctx is canceled.
// Handler errors nack with requeue so a transient store failure retries.
func (c *Client) Consume(ctx context.Context, handler func(context.Context, *CascadeMessage) error) error {
	deliveries, err := c.channel.Consume(
		c.queueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			msg, err := CascadeMessageFromJSON(d.Body)
			if err != nil {
				slog.ErrorContext(ctx, "dropping malformed cascade message", "error", err)
				d.Nack(false, false)
				continue
			}
			if err := handler(ctx, msg); err != nil {
				slog.ErrorContext(ctx, "cascade handler failed, requeueing",
					"wallet_id", msg.WalletID, "error", err)
				d.Nack(false, true)
				continue
			}
			d.Ack(false)
		}
	}
}
