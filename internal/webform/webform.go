// Package webform computes and verifies the MAC that binds a bank-account
// capture web form to the session that requested it.
//
// The gateway is stateless: everything needed to verify a callback travels in
// the redirect URL itself as a MAC token plus the form creation timestamp.
// Verification recomputes the MAC over the current request's fields and the
// claimed timestamp; because the timestamp is itself part of the signed
// message, it cannot be altered without invalidating the token. The flip side
// is that anyone holding the secret could self-issue forms; that is accepted
// as inherent to the stateless design.
package webform

import (
	"crypto/hmac"
	"encoding/base64"
	"time"

	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/secret"
)

// macEncoding renders MAC tags as URL-safe text with no padding, suitable for
// embedding directly in a redirect query string.
var macEncoding = base64.RawURLEncoding

// MacResult is the issuance output: the encoded MAC token and the
// millisecond-truncated timestamp it was computed with. Both must travel to
// the end-user and back, conventionally as the hmac and fct query parameters.
type MacResult struct {
	Mac              string
	FormCreationTime time.Time
}

// Authenticator issues and verifies web form MACs. The signing key is loaded
// from the store fresh for every operation and destroyed afterwards, so
// concurrent operations share no state and key rotation needs no restart.
type Authenticator struct {
	store *secret.Store

	// now is the clock; replaceable in tests.
	now func() time.Time
}

// NewAuthenticator returns an Authenticator backed by store.
func NewAuthenticator(store *secret.Store) *Authenticator {
	return &Authenticator{store: store, now: time.Now}
}

// IssueCaptureForm computes the MAC for a token-capture web form issued now.
// Deterministic for fixed field values and a fixed clock.
func (a *Authenticator) IssueCaptureForm(form CaptureForm) (MacResult, error) {
	msg, err := newCaptureMessage(form, a.now())
	if err != nil {
		return MacResult{}, err
	}
	var tag []byte
	err = a.store.WithKey(func(k *secret.Key) error {
		tag = computeTag(k, msg)
		return nil
	})
	if err != nil {
		return MacResult{}, err
	}
	return MacResult{
		Mac:              macEncoding.EncodeToString(tag),
		FormCreationTime: msg.formCreationTime,
	}, nil
}

// VerifyCaptureForm reports whether presentedMac is the authentic MAC for the
// current request's fields and the claimed form creation time. The comparison
// runs over the decoded raw tags in constant time; a token that does not
// decode is a mismatch, never an error. Expiry is a separate concern; see
// Expired.
func (a *Authenticator) VerifyCaptureForm(presentedMac string, form CaptureForm, formCreationTime time.Time) (bool, error) {
	presented, decodeErr := macEncoding.DecodeString(presentedMac)
	msg, err := newCaptureMessage(form, formCreationTime)
	if err != nil {
		return false, err
	}
	var ok bool
	err = a.store.WithKey(func(k *secret.Key) error {
		expected := computeTag(k, msg)
		ok = decodeErr == nil && hmac.Equal(expected, presented)
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Expired reports whether a form issued at formCreationTime has outlived
// timeout. Independent of MAC validity: an expired-but-authentic token and a
// fresh-but-forged one must surface as different failures.
func (a *Authenticator) Expired(formCreationTime time.Time, timeout time.Duration) bool {
	return a.now().After(formCreationTime.Add(timeout))
}

func computeTag(k *secret.Key, msg captureMessage) []byte {
	mac := k.NewMAC()
	mac.Write(msg.encode())
	return mac.Sum(nil)
}
