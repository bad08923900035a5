/*
Package directory implements credential validation and group authorization
against an LDAP directory.

A Client is bound to one endpoint for its lifetime and offers four
operations:

  - ValidatePassword authenticates a principal by binding as it.
  - IsGroupMember binds as a service account and probes a subtree for at
    least one entry matching a group filter.
  - LookupDistinguishedNames binds as a service account and returns the set
    of DNs matching a filter.
  - Ping binds and reads the root DSE, for health checks.

Every call opens its own short-lived connection, binds, performs at most one
search and closes the connection before returning, on every exit path.
Nothing is shared between calls except the immutable client configuration,
so concurrent use needs no coordination.

# Transport security

The endpoint scheme selects the transport: ldap:// is plaintext, ldaps:// is
TLS. When a trust certificate is configured, LoadTrustConfig builds a TLS
configuration whose roots are exactly the certificates in that PEM file; a
server certificate trusted by the platform store but not by the file is
rejected. The TLS configuration is injected per call through go-ldap's dial
options rather than any process-global state.

# Error classification

A bind rejected for bad credentials surfaces as ErrAccessDenied, a generic
"invalid credentials" with no protocol detail. Every other failure surfaces
as a *DirectoryError carrying its category, result code and cause, so
callers can distinguish user error from infrastructure failure (see
IsUnavailable).

Caller-supplied filters are passed to the directory verbatim. Callers that
build filters from untrusted input are responsible for escaping it, for
example with EscapeFilter.
*/
package directory
