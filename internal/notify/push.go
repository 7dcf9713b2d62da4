package notify

import (
	"context"
	"fmt"
	"strconv"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/logger"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// DefaultDispatchTopic is the FCM topic the driver app subscribes to.
const DefaultDispatchTopic = "dispatch"

// MessageSender is the part of the FCM client the notifier uses.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushNotifier tells the dispatch crew when boxes need to move: a paid rental
// needs a delivery, a return-due rental needs a pickup and a cancelled rental
// may need its boxes collected early.
type PushNotifier struct {
	sender MessageSender
	topic  string
}

// NewFirebasePushNotifier initializes a Firebase app from a service account
// file and returns a notifier publishing to topic.
func NewFirebasePushNotifier(ctx context.Context, credentialsFile, topic string) (*PushNotifier, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}
	return NewPushNotifier(client, topic), nil
}

func NewPushNotifier(sender MessageSender, topic string) *PushNotifier {
	if topic == "" {
		topic = DefaultDispatchTopic
	}
	return &PushNotifier{sender: sender, topic: topic}
}

// PushEvents lists the event types the dispatch topic cares about.
var PushEvents = []domain.EventType{
	domain.EventRentalStatusChanged,
	domain.EventRentalReturnDue,
}

func (p *PushNotifier) Name() string { return "push" }

func (p *PushNotifier) Handle(ctx context.Context, evt domain.RentalEvent) error {
	title, ok := dispatchTitle(evt)
	if !ok {
		return nil
	}
	msg := &messaging.Message{
		Topic: p.topic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  fmt.Sprintf("Rental #%d", evt.RentalID),
		},
		Data: map[string]string{
			"event_id":  evt.ID,
			"event":     string(evt.Type),
			"rental_id": strconv.FormatInt(evt.RentalID, 10),
			"status":    string(evt.ToStatus),
		},
	}
	if ids := evt.Attributes["assigned_box_ids"]; ids != "" {
		msg.Data["box_ids"] = ids
	}

	logger.ExternalServiceCall("fcm", "send", "topic", p.topic, "rental_id", evt.RentalID)
	id, err := p.sender.Send(ctx, msg)
	logger.ExternalServiceResult("fcm", "send", err, "message_id", id)
	if err != nil {
		return fmt.Errorf("failed to push dispatch message: %w", err)
	}
	return nil
}

func dispatchTitle(evt domain.RentalEvent) (string, bool) {
	switch evt.Type {
	case domain.EventRentalReturnDue:
		return "Pickup due", true
	case domain.EventRentalStatusChanged:
		switch evt.ToStatus {
		case domain.RentalStatusPaid:
			return "New delivery", true
		case domain.RentalStatusCancelled:
			if evt.FromStatus == domain.RentalStatusDelivered || evt.FromStatus == domain.RentalStatusPaid {
				return "Delivery cancelled", true
			}
		}
	}
	return "", false
}
