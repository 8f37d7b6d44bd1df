// Package gateway implements the Turnstile gateway SPI for AU direct debit.
//
// The gateway holds no per-transaction state: a capture web form is bound to
// the requesting session by a MAC carried in the redirect URL, and the
// callback is verified against the same MAC. Only capture is supported;
// card-present and card-not-present payments and token deletion report
// OPERATION_NOT_SUPPORTED.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/events"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/scope"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/urltmpl"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/webform"
)

// GatewayCode is the {gw} substitution value for this gateway.
const GatewayCode = "audirectdebit"

// Query parameter names carried through the capture page redirect.
const (
	paramHmac       = "hmac"
	paramFct        = "fct"
	paramPrevStatus = "prevStatus"
	paramAction     = "action"
	paramName       = "name"
	paramBSB        = "bsb"
	paramAccount    = "account"
)

// ErrInvalidRequest marks malformed or incomplete requests; the HTTP layer
// maps it to a 400 response. Not retryable.
var ErrInvalidRequest = errors.New("gateway: invalid request")

// Gateway implements the SPI operations.
type Gateway struct {
	auth     *webform.Authenticator
	producer *events.Producer
	log      *slog.Logger
}

// New constructs a Gateway. producer may be nil, in which case capture events
// are dropped.
func New(auth *webform.Authenticator, producer *events.Producer, log *slog.Logger) *Gateway {
	return &Gateway{auth: auth, producer: producer, log: log}
}

// CaptureURL issues the redirect URL for the self-hosted account capture
// page. The URL embeds a MAC over the request's identity fields plus the form
// creation time, so only the session that requested the form can conclude it.
func (g *Gateway) CaptureURL(ctx context.Context, sc scope.Scope, req TokeniseRequest) (WebFormResult, error) {
	g.log.InfoContext(ctx, "received request for capture URL",
		"tid", sc.TID, "accountId", req.AccountID, "paymentMethodId", req.PaymentMethodID)

	form, err := captureFormFields(sc, req.EndUserIPAddress, req.AccountID, req.PaymentMethodID)
	if err != nil {
		return WebFormResult{}, err
	}
	if req.ReturnURL == "" {
		return WebFormResult{}, fmt.Errorf("%w: returnUrl is required", ErrInvalidRequest)
	}
	cfg, err := unmarshalConfig(req.Config)
	if err != nil {
		return WebFormResult{}, err
	}

	mac, err := g.auth.IssueCaptureForm(form)
	if err != nil {
		return WebFormResult{}, fmt.Errorf("issue capture form MAC: %w", err)
	}

	redirectURL, err := urltmpl.ForCapturePage(cfg.TokenCaptureURL, GatewayCode).
		AddQueryArg(paramHmac, mac.Mac).
		AddQueryArg(paramFct, strconv.FormatInt(mac.FormCreationTime.UnixMilli(), 10)).
		AddQueryArgIfNotEmpty(paramPrevStatus, req.PrevStatus).
		AddBase64QueryArg(paramAction, req.ReturnURL).
		Render()
	if err != nil {
		return WebFormResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	g.log.InfoContext(ctx, "redirecting to capture page", "tid", sc.TID, "accountId", req.AccountID)
	return webFormSuccess(redirectURL), nil
}

// QueryCapture concludes a capture attempt from the end-user's callback. The
// timeout check runs before MAC verification: an expired token carries no
// trust signal either way, and the two failures need distinct statuses so the
// end-user can be told "timed out" rather than "invalid".
func (g *Gateway) QueryCapture(ctx context.Context, sc scope.Scope, req CaptureQueryRequest) (CaptureResult, error) {
	g.log.InfoContext(ctx, "looking up capture result",
		"tid", sc.TID, "accountId", req.AccountID, "paymentMethodId", req.PaymentMethodID)

	form, err := captureFormFields(sc, req.EndUserIPAddress, req.AccountID, req.PaymentMethodID)
	if err != nil {
		return CaptureResult{}, err
	}
	cfg, err := unmarshalConfig(req.Config)
	if err != nil {
		return CaptureResult{}, err
	}
	query, err := url.ParseQuery(req.URLQueryString)
	if err != nil {
		return CaptureResult{}, fmt.Errorf("%w: malformed callback query string", ErrInvalidRequest)
	}

	presentedMac := query.Get(paramHmac)
	fctMillis, err := strconv.ParseInt(query.Get(paramFct), 10, 64)
	if presentedMac == "" || err != nil {
		return CaptureResult{}, fmt.Errorf("%w: callback is missing hmac or fct", ErrInvalidRequest)
	}
	formCreationTime := time.UnixMilli(fctMillis)

	timeout := cfg.webFormTimeout()
	if g.auth.Expired(formCreationTime, timeout) {
		g.publish(ctx, sc, req, CaptureTimedOut, "")
		return captureFailed(CaptureTimedOut,
			fmt.Sprintf("Web form timed out (%d seconds)", int(timeout.Seconds()))), nil
	}

	ok, err := g.auth.VerifyCaptureForm(presentedMac, form, formCreationTime)
	if err != nil {
		return CaptureResult{}, fmt.Errorf("verify capture form MAC: %w", err)
	}
	if !ok {
		// Worth watching: a mismatch here is tampering, replay from another
		// session, or a stale secret. Never log the expected value.
		g.log.WarnContext(ctx, "web form MAC validation failed",
			"tid", sc.TID, "accountId", req.AccountID, "endUserIp", req.EndUserIPAddress)
		g.publish(ctx, sc, req, CaptureInvalidRequest, "")
		return captureFailed(CaptureInvalidRequest, "MAC validation failure"), nil
	}

	// Request is authentic; assemble the captured AU bank account.
	acct := AUBankAccountDetails{
		Name:    query.Get(paramName),
		Account: query.Get(paramBSB) + query.Get(paramAccount),
	}
	hint, err := accountHint(acct.Account)
	if err != nil {
		return CaptureResult{}, err
	}
	token, err := json.Marshal(acct)
	if err != nil {
		return CaptureResult{}, fmt.Errorf("marshal account details: %w", err)
	}

	g.publish(ctx, sc, req, CaptureAccepted, hint)
	return CaptureResult{
		Status: CaptureAccepted,
		Token:  string(token),
		Key:    strconv.Itoa(cfg.Institution),
		Hint:   hint,
	}, nil
}

// CPPaymentURL is not supported by this gateway.
func (g *Gateway) CPPaymentURL(ctx context.Context, sc scope.Scope, req CppTransferRequest) WebFormResult {
	return webFormFailed(WebFormOperationNotSupported,
		"Card-present payments are not implemented in turnstile-audirectdebit-gw.")
}

// QueryPaymentStatus is not supported by this gateway.
func (g *Gateway) QueryPaymentStatus(ctx context.Context, sc scope.Scope, req CppQueryRequest) TransferResult {
	return transferFailed(PaymentOperationNotSupported,
		"Card-present payments are not implemented in turnstile-audirectdebit-gw.")
}

// CnpTransfer is not supported yet.
func (g *Gateway) CnpTransfer(ctx context.Context, sc scope.Scope, req CnpTransferRequest) TransferResult {
	return transferFailed(PaymentOperationNotSupported,
		"Direct Debit payments are not implemented in turnstile-audirectdebit-gw.")
}

// DeleteToken is not supported yet.
func (g *Gateway) DeleteToken(ctx context.Context, sc scope.Scope, req DeleteTokenRequest) DeleteTokenResult {
	return deleteTokenFailed(DeleteTokenOperationNotSupported,
		"Token deletion is yet to be implemented in turnstile-audirectdebit-gw")
}

func (g *Gateway) publish(ctx context.Context, sc scope.Scope, req CaptureQueryRequest, status CaptureStatus, hint string) {
	err := g.producer.CaptureEvent(ctx, events.CapturePayload{
		TID:             sc.TID,
		AccountID:       req.AccountID,
		PaymentMethodID: req.PaymentMethodID,
		Status:          string(status),
		Hint:            hint,
		OccurredAt:      time.Now().UTC(),
	})
	if err != nil {
		g.log.ErrorContext(ctx, "publish capture event", "error", err)
	}
}

// captureFormFields validates the identity fields shared by issuance and
// verification and maps them onto the MAC message.
func captureFormFields(sc scope.Scope, ip, accountID, paymentMethodID string) (webform.CaptureForm, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return webform.CaptureForm{}, fmt.Errorf("%w: endUserIpAddress is missing or malformed", ErrInvalidRequest)
	}
	account, err := uuid.Parse(accountID)
	if err != nil {
		return webform.CaptureForm{}, fmt.Errorf("%w: accountId is missing or malformed", ErrInvalidRequest)
	}
	paymentMethod, err := uuid.Parse(paymentMethodID)
	if err != nil {
		return webform.CaptureForm{}, fmt.Errorf("%w: paymentMethodId is missing or malformed", ErrInvalidRequest)
	}
	return webform.CaptureForm{
		TID:             sc.TID,
		Principal:       sc.Principal,
		EndUserAddr:     addr,
		AccountID:       account,
		PaymentMethodID: paymentMethod,
	}, nil
}
