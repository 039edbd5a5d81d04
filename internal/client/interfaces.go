package client

import "context"

// AnalysisClientInterface reads externally-computed assessment facts for a
// developer. The core never writes through this interface.
type AnalysisClientInterface interface {
	GetAssessment(ctx context.Context, developerID string) (*Assessment, error)
}

// PaymentClientInterface initiates credit purchases with the payment
// processor. Confirmation arrives asynchronously via a signed callback.
type PaymentClientInterface interface {
	CreateCheckout(ctx context.Context, companyID string, credits int64) (*Checkout, error)
}

// EmailPublisherInterface requests invitation emails be sent. Best effort:
// delivery failure never propagates to the caller.
type EmailPublisherInterface interface {
	PublishInvitationEmail(ctx context.Context, email InvitationEmail)
}
