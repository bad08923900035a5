package directory

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// EscapeFilter escapes a value for safe interpolation into a search filter
// (RFC 4515). The client itself never escapes caller-supplied filters;
// callers assembling filters from end-user input are expected to run values
// through this first.
func EscapeFilter(value string) string {
	return ldap.EscapeFilter(value)
}

// EscapeDNValue escapes a DN attribute value according to RFC 4514:
// the characters , + " \ < > ; always, a leading #, leading and trailing
// spaces, and NUL bytes as \00.
func EscapeDNValue(value string) string {
	if value == "" {
		return value
	}

	var b strings.Builder
	b.Grow(len(value) + 8)

	for i, r := range value {
		switch r {
		case ',', '+', '"', '\\', '<', '>', ';':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '#':
			if i == 0 {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		case ' ':
			if i == 0 || i == len(value)-1 {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		case 0:
			b.WriteString(`\00`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
