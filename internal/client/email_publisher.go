package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// EmailPublisher publishes invitation email requests to NATS for consumption
// by the notifications service.
//
// Subject convention: notifications.talent.<event_type>
// Event types: invitation_sent, invitation_accepted
//
// All publish operations are non-fatal — errors are logged but never
// propagated, so a delivery failure never rolls back invitation creation.
type EmailPublisher struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// EmailEvent is the JSON schema published to NATS.
type EmailEvent struct {
	EventType      string `json:"event_type"`
	CandidateEmail string `json:"candidate_email"`
	CompanyName    string `json:"company_name"`
	Message        string `json:"message,omitempty"`
	AcceptURL      string `json:"accept_url,omitempty"`
}

// NewEmailPublisher connects to NATS and returns a publisher. An empty URL
// returns a disabled publisher that drops all events.
func NewEmailPublisher(url string, log zerolog.Logger) (*EmailPublisher, error) {
	if url == "" {
		return &EmailPublisher{log: log}, nil
	}
	conn, err := nats.Connect(url,
		nats.Name("be-talent-pipeline"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &EmailPublisher{conn: conn, log: log}, nil
}

// Close drains the NATS connection.
func (p *EmailPublisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}

// PublishInvitationEmail publishes an invitation_sent event.
// Subject: notifications.talent.invitation_sent
func (p *EmailPublisher) PublishInvitationEmail(ctx context.Context, email InvitationEmail) {
	if p.conn == nil {
		return
	}

	event := &EmailEvent{
		EventType:      "invitation_sent",
		CandidateEmail: email.CandidateEmail,
		CompanyName:    email.CompanyName,
		Message:        email.Message,
		AcceptURL:      fmt.Sprintf("%s?token=%s", email.AcceptURL, email.Token),
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", event.EventType).Msg("email: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.talent.%s", event.EventType)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("candidate_email", email.CandidateEmail).
			Msg("email: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("candidate_email", email.CandidateEmail).
		Msg("email: event published")
}
