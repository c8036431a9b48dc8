package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EmailJob is an outbound mail request. Rendering and delivery happen in a
// separate worker; the chat server only publishes.
type EmailJob struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// MailPublisher enqueues email jobs.
type MailPublisher interface {
	Publish(ctx context.Context, job EmailJob) error
}

// AMQPMailPublisher publishes email jobs to a RabbitMQ queue.
type AMQPMailPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewAMQPMailPublisher connects to RabbitMQ and declares the durable queue.
func NewAMQPMailPublisher(url, queueName string) (*AMQPMailPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := channel.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &AMQPMailPublisher{conn: conn, channel: channel, queue: queueName}, nil
}

// Publish enqueues one email job.
func (p *AMQPMailPublisher) Publish(ctx context.Context, job EmailJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// Close releases the channel and connection.
func (p *AMQPMailPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}

// NoopMailPublisher logs and drops jobs. Used when no broker is configured.
type NoopMailPublisher struct{}

// Publish logs the job and succeeds.
func (NoopMailPublisher) Publish(_ context.Context, job EmailJob) error {
	slog.Info("mail queue not configured, dropping email", "to", job.To, "subject", job.Subject)
	return nil
}
