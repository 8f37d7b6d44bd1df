package webform

import (
	"encoding/binary"
	"errors"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// Message variant tags. Each gateway operation that issues a web form gets its
// own tag so a MAC issued for one operation can never verify for another, even
// if the remaining fields collide.
const captureFormVariant byte = 0x01

// encodedLen is the canonical size of a capture form message:
// variant tag, tenant id, principal, end-user address, account id,
// payment method id, form creation time.
const encodedLen = 1 + 4 + 16 + 16 + 16 + 16 + 8

var errMissingField = errors.New("webform: authorization message field missing")

// CaptureForm carries the fields bound into the MAC for a token-capture web
// form. The end-user address and authenticated principal are included so a
// token submitted from a different session or by a different user fails
// verification; the capture protocol itself has no way to correlate tokens to
// sessions.
type CaptureForm struct {
	TID             int32
	Principal       uuid.UUID
	EndUserAddr     netip.Addr
	AccountID       uuid.UUID
	PaymentMethodID uuid.UUID
}

// captureMessage is a CaptureForm plus the issuance timestamp, the complete
// authorization message the MAC is computed over. Construction fails if any
// field is absent, so a missing value can never silently serialize as zeros.
type captureMessage struct {
	form CaptureForm
	// formCreationTime is truncated to millisecond precision. Coarser
	// truncation would weaken the freshness window; finer precision risks an
	// encoding mismatch between issuance and verification.
	formCreationTime time.Time
}

func newCaptureMessage(form CaptureForm, formCreationTime time.Time) (captureMessage, error) {
	switch {
	case form.TID == 0,
		form.Principal == uuid.Nil,
		!form.EndUserAddr.IsValid(),
		form.AccountID == uuid.Nil,
		form.PaymentMethodID == uuid.Nil,
		formCreationTime.IsZero():
		return captureMessage{}, errMissingField
	}
	return captureMessage{
		form:             form,
		formCreationTime: formCreationTime.Truncate(time.Millisecond),
	}, nil
}

// encode produces the canonical byte representation of the message. The
// layout is fixed-width big-endian, so two messages with equal field values
// encode byte-for-byte identically on every platform. Addresses are packed
// via As16 so an IPv4 value encodes the same whether it was parsed as
// dotted-quad or as an IPv4-mapped IPv6 address. This is the single codec
// path for both issuance and verification.
func (m captureMessage) encode() []byte {
	buf := make([]byte, 0, encodedLen)
	buf = append(buf, captureFormVariant)
	buf = binary.BigEndian.AppendUint32(buf, uint32(m.form.TID))
	buf = append(buf, m.form.Principal[:]...)
	addr := m.form.EndUserAddr.As16()
	buf = append(buf, addr[:]...)
	buf = append(buf, m.form.AccountID[:]...)
	buf = append(buf, m.form.PaymentMethodID[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(m.formCreationTime.UnixMilli()))
	return buf
}
