// Package notify turns rental events into customer emails and dispatch push
// messages. Handlers run after the rental's transaction commits; a failed
// delivery is logged by the bus and never undoes the rental change.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/logger"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// CustomerFinder resolves the recipient of a rental event.
type CustomerFinder interface {
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)
}

// MailSender is the part of the SendGrid client the notifier uses.
type MailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type EmailConfig struct {
	FromEmail string
	FromName  string
	// TrackingURL is shown in tracking code emails, e.g.
	// https://boxes.example.com/track.
	TrackingURL string
}

type EmailNotifier struct {
	sender    MailSender
	customers CustomerFinder
	cfg       EmailConfig
}

// NewSendGridNotifier builds a notifier backed by the SendGrid v3 API.
func NewSendGridNotifier(apiKey string, customers CustomerFinder, cfg EmailConfig) *EmailNotifier {
	return NewEmailNotifier(sendgrid.NewSendClient(apiKey), customers, cfg)
}

func NewEmailNotifier(sender MailSender, customers CustomerFinder, cfg EmailConfig) *EmailNotifier {
	return &EmailNotifier{sender: sender, customers: customers, cfg: cfg}
}

// EmailEvents lists the event types worth an email.
var EmailEvents = []domain.EventType{
	domain.EventRentalCreated,
	domain.EventRentalStatusChanged,
	domain.EventTrackingCodeIssued,
	domain.EventRentalReturnDue,
}

func (n *EmailNotifier) Name() string { return "email" }

func (n *EmailNotifier) Handle(ctx context.Context, evt domain.RentalEvent) error {
	subject, body, ok := n.compose(evt)
	if !ok {
		return nil
	}
	customer, err := n.customers.GetByID(ctx, evt.CustomerID)
	if err != nil {
		return fmt.Errorf("notify: load customer %d: %w", evt.CustomerID, err)
	}
	if strings.TrimSpace(customer.Email) == "" {
		logger.Debug("customer has no email, skipping", "customer_id", customer.ID, "event_id", evt.ID)
		return nil
	}
	return n.send(ctx, customer, subject, body)
}

func (n *EmailNotifier) send(ctx context.Context, to *domain.Customer, subject, plainText string) error {
	from := mail.NewEmail(n.cfg.FromName, n.cfg.FromEmail)
	recipient := mail.NewEmail(to.Name, to.Email)
	htmlContent := "<html><body><p>" + strings.ReplaceAll(html.EscapeString(plainText), "\n", "<br>") + "</p></body></html>"
	message := mail.NewSingleEmail(from, subject, recipient, plainText, htmlContent)

	logger.ExternalServiceCall("sendgrid", "send", "customer_id", to.ID, "subject", subject)
	response, err := n.sender.SendWithContext(ctx, message)
	if err == nil && response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	logger.ExternalServiceResult("sendgrid", "send", err, "customer_id", to.ID)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (n *EmailNotifier) compose(evt domain.RentalEvent) (subject, body string, ok bool) {
	ref := fmt.Sprintf("rental #%d", evt.RentalID)
	switch evt.Type {
	case domain.EventRentalCreated:
		return "We received your box rental request",
			fmt.Sprintf("Thanks for booking %s boxes with us. Your %s total is %s and is pending payment.",
				evt.Attributes["box_count"], ref, evt.Attributes["total"]), true
	case domain.EventTrackingCodeIssued:
		code := evt.Attributes["tracking_code"]
		if code == "" {
			return "", "", false
		}
		body := fmt.Sprintf("Your tracking code for %s is %s. Use it together with the last four digits of your national ID before the check digit to follow your rental.", ref, code)
		if n.cfg.TrackingURL != "" {
			body += "\n" + n.cfg.TrackingURL
		}
		return "Your tracking code", body, true
	case domain.EventRentalStatusChanged:
		info := evt.ToStatus.Info()
		body := fmt.Sprintf("The status of %s is now: %s.", ref, info.Label)
		if reason := evt.Attributes["reason"]; reason != "" && evt.ToStatus == domain.RentalStatusCancelled {
			body += "\nReason: " + reason
		}
		return fmt.Sprintf("Rental update: %s", info.Label), body, true
	case domain.EventRentalReturnDue:
		return "Your boxes will be picked up soon",
			fmt.Sprintf("We will pick up the boxes for %s on %s. Please have them packed and closed.",
				ref, evt.Attributes["return_date"]), true
	}
	return "", "", false
}
