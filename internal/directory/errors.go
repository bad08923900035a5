package directory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrAccessDenied is returned when the directory rejects a bind because of
// bad credentials. It deliberately carries no detail from the underlying
// protocol error, so callers cannot tell a wrong password from a disabled
// account.
var ErrAccessDenied = errors.New("invalid credentials")

// Category classifies directory failures other than access-denied.
type Category string

const (
	CategoryConnection Category = "connection"
	CategoryProtocol   Category = "protocol"
	CategoryNotFound   Category = "not_found"
	CategoryServer     Category = "server"
	CategoryUnknown    Category = "unknown"
)

// DirectoryError describes a failed directory operation with its original
// classification intact. Access-denied is never represented as a
// DirectoryError; it is narrowed to ErrAccessDenied instead.
type DirectoryError struct {
	Operation  string   // operation that failed: bind, search, dial
	Category   Category // failure category
	ResultCode uint16   // LDAP result code, 0 when not an LDAP error
	Message    string   // human-readable summary
	Cause      error    // underlying error
}

func (e *DirectoryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "directory %s failed", e.Operation)
	if e.ResultCode > 0 {
		fmt.Fprintf(&b, " (code %d)", e.ResultCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *DirectoryError) Unwrap() error {
	return e.Cause
}

// newDirectoryError wraps err with the operation that produced it, deriving
// the category from the LDAP result code when one is present.
func newDirectoryError(operation string, err error) *DirectoryError {
	if err == nil {
		return nil
	}
	de := &DirectoryError{
		Operation: operation,
		Cause:     err,
		Message:   err.Error(),
	}
	var lerr *ldap.Error
	if errors.As(err, &lerr) {
		de.ResultCode = lerr.ResultCode
		de.Category = categorizeCode(lerr.ResultCode)
	} else {
		de.Category = categorizeGeneric(err)
	}
	return de
}

func categorizeCode(code uint16) Category {
	switch code {
	case ldap.LDAPResultServerDown,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultAdminLimitExceeded:
		return CategoryServer
	case ldap.LDAPResultConnectError,
		ldap.LDAPResultTimeout:
		return CategoryConnection
	case ldap.LDAPResultNoSuchObject,
		ldap.LDAPResultNoSuchAttribute,
		ldap.LDAPResultUndefinedAttributeType:
		return CategoryNotFound
	case ldap.LDAPResultProtocolError,
		ldap.LDAPResultInvalidDNSyntax,
		ldap.LDAPResultFilterError,
		ldap.LDAPResultDecodingError,
		ldap.LDAPResultEncodingError,
		ldap.LDAPResultReferral:
		return CategoryProtocol
	default:
		return CategoryUnknown
	}
}

func categorizeGeneric(err error) Category {
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "connection refused"),
		strings.Contains(s, "connection reset"),
		strings.Contains(s, "broken pipe"),
		strings.Contains(s, "no such host"),
		strings.Contains(s, "network"),
		strings.Contains(s, "timeout"),
		strings.Contains(s, "tls"),
		strings.Contains(s, "certificate"),
		strings.Contains(s, "dial"):
		return CategoryConnection
	default:
		return CategoryUnknown
	}
}

// IsAccessDenied reports whether err is the access-denied outcome of a bind.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsUnavailable reports whether err indicates the directory could not be
// reached or could not serve the request, as opposed to rejecting
// credentials. Callers use this to alert or retry at a higher layer.
func IsUnavailable(err error) bool {
	var de *DirectoryError
	if errors.As(err, &de) {
		return de.Category == CategoryConnection || de.Category == CategoryServer
	}
	return false
}
