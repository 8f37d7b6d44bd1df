package gateway

import (
	"encoding/json"
	"time"
)

// Request types mirror the Turnstile gateway SPI. Every request carries the
// end-user address and account the operation concerns, plus the tenant's raw
// gateway configuration document.

// TokeniseRequest asks for a capture web form URL for a payment method.
type TokeniseRequest struct {
	EndUserIPAddress string          `json:"endUserIpAddress"`
	AccountID        string          `json:"accountId"`
	PaymentMethodID  string          `json:"paymentMethodId"`
	ReturnURL        string          `json:"returnUrl"`
	PrevStatus       string          `json:"prevStatus,omitempty"`
	Config           json.RawMessage `json:"config"`
}

// CaptureQueryRequest reports the end-user's callback after form submission.
// URLQueryString is the verbatim query string of the callback, containing the
// hmac and fct parameters issued with the form alongside the captured fields.
type CaptureQueryRequest struct {
	EndUserIPAddress string          `json:"endUserIpAddress"`
	AccountID        string          `json:"accountId"`
	PaymentMethodID  string          `json:"paymentMethodId"`
	URLQueryString   string          `json:"urlQueryString"`
	Config           json.RawMessage `json:"config"`
}

// CppTransferRequest is a card-present payment request.
type CppTransferRequest struct {
	EndUserIPAddress string          `json:"endUserIpAddress"`
	AccountID        string          `json:"accountId"`
	Config           json.RawMessage `json:"config"`
}

// CppQueryRequest queries a card-present payment status.
type CppQueryRequest struct {
	AccountID string          `json:"accountId"`
	Config    json.RawMessage `json:"config"`
}

// CnpTransferRequest is a card-not-present (direct debit) payment request.
type CnpTransferRequest struct {
	AccountID       string          `json:"accountId"`
	PaymentMethodID string          `json:"paymentMethodId"`
	Config          json.RawMessage `json:"config"`
}

// DeleteTokenRequest asks for a stored token to be revoked.
type DeleteTokenRequest struct {
	AccountID string          `json:"accountId"`
	Token     string          `json:"token"`
	Config    json.RawMessage `json:"config"`
}

// WebFormStatus is the outcome of a web form URL request.
type WebFormStatus string

const (
	WebFormOK                    WebFormStatus = "OK"
	WebFormOperationNotSupported WebFormStatus = "OPERATION_NOT_SUPPORTED"
	WebFormFailed                WebFormStatus = "FAILED"
)

// WebFormResult is the outcome of CaptureURL and the card-present URL op.
type WebFormResult struct {
	Status      WebFormStatus `json:"status"`
	RedirectURL string        `json:"redirectUrl,omitempty"`
	Message     string        `json:"message,omitempty"`
}

// CaptureStatus is the outcome of a capture callback query.
type CaptureStatus string

const (
	CaptureAccepted              CaptureStatus = "ACCEPTED"
	CaptureTimedOut              CaptureStatus = "TIMED_OUT"
	CaptureInvalidRequest        CaptureStatus = "INVALID_REQUEST"
	CaptureOperationNotSupported CaptureStatus = "OPERATION_NOT_SUPPORTED"
)

// CaptureResult is the outcome of QueryCapture. Token holds the captured
// account details for Turnstile to encrypt; Hint is the masked display form.
type CaptureResult struct {
	Status     CaptureStatus `json:"status"`
	Token      string        `json:"token,omitempty"`
	Key        string        `json:"key,omitempty"`
	ExpiryDate *time.Time    `json:"expiryDate,omitempty"`
	Hint       string        `json:"hint,omitempty"`
	Message    string        `json:"message,omitempty"`
}

// PaymentStatus is the outcome of a transfer operation.
type PaymentStatus string

const (
	PaymentOperationNotSupported PaymentStatus = "OPERATION_NOT_SUPPORTED"
)

// TransferResult is the outcome of payment transfer operations.
type TransferResult struct {
	Status  PaymentStatus `json:"status"`
	Message string        `json:"message,omitempty"`
}

// DeleteTokenStatus is the outcome of a token deletion.
type DeleteTokenStatus string

const (
	DeleteTokenOperationNotSupported DeleteTokenStatus = "OPERATION_NOT_SUPPORTED"
)

// DeleteTokenResult is the outcome of DeleteToken.
type DeleteTokenResult struct {
	Status  DeleteTokenStatus `json:"status"`
	Message string            `json:"message,omitempty"`
}

// AUBankAccountDetails is the captured account payload serialized into
// CaptureResult.Token. Account is the BSB and account number concatenated.
type AUBankAccountDetails struct {
	Name    string `json:"name"`
	Account string `json:"account"`
}
