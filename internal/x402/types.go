package x402

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"mint-gate.backend/internal/domain/entities"
)

// Version is the x402 protocol version this service speaks.
const Version = 1

// SchemeExact is the only payment scheme accepted: an exact-amount EIP-3009
// transfer authorization.
const SchemeExact = "exact"

// PaymentRequirements describes what a client must pay to use a gated
// resource. It is returned in the 402 response body.
type PaymentRequirements struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	Resource          string `json:"resource"`
	Description       string `json:"description,omitempty"`
	MimeType          string `json:"mimeType,omitempty"`
	PayTo             string `json:"payTo"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds,omitempty"`
	Asset             string `json:"asset"`
}

// PaymentRequired is the 402 response body listing acceptable payments.
type PaymentRequired struct {
	X402Version int                   `json:"x402Version"`
	Error       string                `json:"error,omitempty"`
	Accepts     []PaymentRequirements `json:"accepts"`
}

// ExactEvmAuthorization is the EIP-3009 transferWithAuthorization typed-data
// message carried inside an exact-scheme payload.
type ExactEvmAuthorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// ExactEvmPayload pairs the authorization with the payer's signature.
type ExactEvmPayload struct {
	Signature     string                 `json:"signature"`
	Authorization *ExactEvmAuthorization `json:"authorization"`
}

// PaymentPayload is the decoded X-PAYMENT header content.
type PaymentPayload struct {
	X402Version int              `json:"x402Version"`
	Scheme      string           `json:"scheme"`
	Network     string           `json:"network"`
	Payload     *ExactEvmPayload `json:"payload"`
}

// DecodePaymentPayload decodes a base64 X-PAYMENT header value.
func DecodePaymentPayload(encoded string) (*PaymentPayload, error) {
	if encoded == "" {
		return nil, fmt.Errorf("X-PAYMENT header is required")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 string: %w", err)
	}
	var payload PaymentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse payment payload: %w", err)
	}
	return &payload, nil
}

// EncodePaymentPayload encodes a payload the way clients send it, base64 over
// JSON. Primarily used by tests and tooling.
func EncodePaymentPayload(payload *PaymentPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Validate checks the payload against the requirements it claims to satisfy.
func (p *PaymentPayload) Validate(requirements *PaymentRequirements) error {
	if p.X402Version != Version {
		return fmt.Errorf("unsupported x402 version: %d", p.X402Version)
	}
	if p.Scheme != requirements.Scheme {
		return fmt.Errorf("unsupported payment scheme: %s", p.Scheme)
	}
	if p.Network != requirements.Network {
		return fmt.Errorf("wrong network: %s", p.Network)
	}
	if p.Payload == nil || p.Payload.Authorization == nil {
		return fmt.Errorf("payment authorization is required")
	}
	if p.Payload.Signature == "" {
		return fmt.Errorf("payment signature is required")
	}
	auth := p.Payload.Authorization
	if auth.Value != requirements.MaxAmountRequired {
		return fmt.Errorf("authorization value %s does not match required amount %s",
			auth.Value, requirements.MaxAmountRequired)
	}
	return nil
}

// ToTransferAuthorization converts the payload into the domain authorization
// the payment queue stores and settles.
func (p *PaymentPayload) ToTransferAuthorization() entities.TransferAuthorization {
	auth := p.Payload.Authorization
	return entities.TransferAuthorization{
		From:        auth.From,
		To:          auth.To,
		Value:       auth.Value,
		ValidAfter:  auth.ValidAfter,
		ValidBefore: auth.ValidBefore,
		Nonce:       auth.Nonce,
		Signature:   p.Payload.Signature,
	}
}
