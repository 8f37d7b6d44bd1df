// Package urltmpl builds the redirect URL for the self-hosted capture page
// from a tenant-configured template.
package urltmpl

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// gatewayPlaceholder is replaced in templates with the gateway code, so one
// capture-page template can serve several gateway implementations.
const gatewayPlaceholder = "{gw}"

// Builder accumulates query arguments onto an interpolated URL template.
// Arguments render in the order they were added.
type Builder struct {
	base string
	args []arg
}

type arg struct {
	key   string
	value string
}

// ForCapturePage interpolates the gateway code into template and returns a
// Builder for the capture page URL.
func ForCapturePage(template, gatewayCode string) *Builder {
	return &Builder{base: strings.ReplaceAll(template, gatewayPlaceholder, gatewayCode)}
}

// AddQueryArg appends key=value to the query string.
func (b *Builder) AddQueryArg(key, value string) *Builder {
	b.args = append(b.args, arg{key: key, value: value})
	return b
}

// AddQueryArgIfNotEmpty appends key=value only when value is non-empty.
func (b *Builder) AddQueryArgIfNotEmpty(key, value string) *Builder {
	if value != "" {
		b.AddQueryArg(key, value)
	}
	return b
}

// AddBase64QueryArg appends the URL-safe base64 encoding of value, used for
// values such as return URLs that would otherwise need heavy escaping.
func (b *Builder) AddBase64QueryArg(key, value string) *Builder {
	return b.AddQueryArg(key, base64.RawURLEncoding.EncodeToString([]byte(value)))
}

// Render produces the final URL. It fails if the interpolated template is not
// itself a valid URL.
func (b *Builder) Render() (string, error) {
	u, err := url.Parse(b.base)
	if err != nil {
		return "", fmt.Errorf("urltmpl: invalid capture page template %q: %w", b.base, err)
	}
	var q strings.Builder
	q.WriteString(u.RawQuery)
	for _, a := range b.args {
		if q.Len() > 0 {
			q.WriteByte('&')
		}
		q.WriteString(url.QueryEscape(a.key))
		q.WriteByte('=')
		q.WriteString(url.QueryEscape(a.value))
	}
	u.RawQuery = q.String()
	return u.String(), nil
}
