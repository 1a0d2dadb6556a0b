package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
)

const EventTypePaymentReconciled = "payment.reconciled"

type PaymentReconciledData struct {
	PaymentID         string  `json:"payment_id"`
	ExternalID        string  `json:"external_id"`
	CourseID          string  `json:"course_id"`
	StudentID         string  `json:"student_id"`
	AmountInCents     int64   `json:"amount_in_cents"`
	EnrollmentID      *string `json:"enrollment_id"`
	EnrollmentCreated bool    `json:"enrollment_created"`
}

type PaymentReconciledEvent struct {
	EventType  string                `json:"event_type"`
	OccurredAt time.Time             `json:"occurred_at"`
	Data       PaymentReconciledData `json:"data"`
}

// EventPublisher publishes a payment.reconciled message for every committed payment.
type EventPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaProducer connects a sync producer, retrying while the brokers come up.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	var producer sarama.SyncProducer
	var err error
	for i := 1; i <= 5; i++ {
		producer, err = sarama.NewSyncProducer(brokers, config)
		if err == nil {
			log.Println("Kafka producer initialized")
			return producer, nil
		}
		log.Printf("Waiting for Kafka... (%d/5) Error: %v", i, err)
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("kafka producer: %w", err)
}

func NewEventPublisher(producer sarama.SyncProducer, topic string) *EventPublisher {
	if topic == "" {
		topic = EventTypePaymentReconciled
	}
	return &EventPublisher{producer: producer, topic: topic}
}

func (p *EventPublisher) Name() string {
	return "event_publisher"
}

// AfterCommit publishes the receipt keyed by the gateway payment id, so all events
// for one payment land on the same partition.
func (p *EventPublisher) AfterCommit(ctx context.Context, receipt *Receipt) error {
	event := PaymentReconciledEvent{
		EventType:  EventTypePaymentReconciled,
		OccurredAt: time.Now().UTC(),
		Data: PaymentReconciledData{
			PaymentID:         receipt.Payment.ID,
			ExternalID:        receipt.Payment.ExternalID,
			CourseID:          receipt.Course.ID,
			StudentID:         receipt.Student.ID,
			AmountInCents:     receipt.Payment.AmountInCents,
			EnrollmentID:      receipt.Payment.EnrollmentID,
			EnrollmentCreated: receipt.EnrollmentCreated,
		},
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", EventTypePaymentReconciled, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(receipt.Payment.ExternalID),
		Value: sarama.ByteEncoder(data),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish %s event: %w", EventTypePaymentReconciled, err)
	}

	log.Printf("Published %s for payment %s (partition %d, offset %d)", EventTypePaymentReconciled, receipt.Payment.ExternalID, partition, offset)
	return nil
}

func (p *EventPublisher) Close() error {
	return p.producer.Close()
}
