package client

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/devmatch/be-talent-pipeline/internal/apperrors"
)

// PaymentHTTPClient implements PaymentClientInterface against the payment
// processor's checkout API.
type PaymentHTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewPaymentHTTPClient creates a client for the payment processor.
func NewPaymentHTTPClient(baseURL string) *PaymentHTTPClient {
	return &PaymentHTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateCheckout opens a checkout session for N credits. The returned
// reference later appears in the signed confirmation callback.
func (c *PaymentHTTPClient) CreateCheckout(ctx context.Context, companyID string, credits int64) (*Checkout, error) {
	payload, err := json.Marshal(map[string]any{
		"company_id":      companyID,
		"credits":         credits,
		"idempotency_key": uuid.NewString(),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "marshal checkout request")
	}

	url := fmt.Sprintf("%s/api/v1/checkouts", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "build checkout request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "payment processor unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, apperrors.Newf(apperrors.CodeUnavailable, "payment processor returned status %d", resp.StatusCode)
	}

	checkout := &Checkout{}
	if err := json.NewDecoder(resp.Body).Decode(checkout); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "decode checkout response")
	}
	return checkout, nil
}

// VerifyCallbackSignature checks the HMAC-SHA256 signature the processor
// attaches to confirmation callbacks. Comparison is constant-time.
func VerifyCallbackSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
