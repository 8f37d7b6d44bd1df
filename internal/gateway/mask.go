package gateway

import (
	"fmt"
	"strings"
)

// minAccountDigits is the shortest AU bank account (BSB + account number)
// this gateway will produce a hint for.
const minAccountDigits = 12

// accountHint masks an account number for display: the first three and last
// three digits survive, everything between becomes X.
func accountHint(account string) (string, error) {
	n := len(account)
	if n < minAccountDigits {
		return "", fmt.Errorf("%w: AU account number must be at least %d digits", ErrInvalidRequest, minAccountDigits)
	}
	return account[:3] + strings.Repeat("X", n-6) + account[n-3:], nil
}
