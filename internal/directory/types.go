package directory

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ReferralPolicy controls what happens when a search returns referrals.
type ReferralPolicy int

const (
	// ReferralIgnore discards referrals returned by the directory.
	ReferralIgnore ReferralPolicy = iota
	// ReferralFollow chases search referrals, re-binding with the same
	// per-call credentials, up to maxReferralDepth hops.
	ReferralFollow
)

// String returns the configuration spelling of the policy.
func (p ReferralPolicy) String() string {
	switch p {
	case ReferralIgnore:
		return "ignore"
	case ReferralFollow:
		return "follow"
	default:
		return "unknown"
	}
}

// ParseReferralPolicy parses the configuration spelling of a referral policy.
func ParseReferralPolicy(s string) (ReferralPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ignore":
		return ReferralIgnore, nil
	case "follow":
		return ReferralFollow, nil
	default:
		return ReferralIgnore, fmt.Errorf("unknown referral policy %q, must be ignore or follow", s)
	}
}

// EndpointConfig holds the static, construction-time parameters of a Client.
type EndpointConfig struct {
	// URL of the directory server, ldap://host[:port] or ldaps://host[:port].
	// The scheme selects plaintext or TLS transport.
	URL string
	// ReferralPolicy applied to search referrals.
	ReferralPolicy ReferralPolicy
	// TrustCertificate is an optional path to a PEM certificate file. When
	// set, the TLS transport trusts exactly the certificates in that file
	// and nothing from the platform store.
	TrustCertificate string
	// Timeout applies to every directory connection opened by the client.
	Timeout time.Duration
	// Logger receives structured operation logs. Nil means no logging.
	Logger *zap.Logger
}

// BindCredentials identifies the principal a single call binds as. The pair
// exists only for the duration of that call and is never logged.
type BindCredentials struct {
	DN       string
	Password string
}

// SearchCriteria describes one subtree search.
type SearchCriteria struct {
	BaseDN string
	Filter string
}

// DNSet is the result of a lookup: distinguished names with duplicates
// collapsed. Iteration order is not significant.
type DNSet map[string]struct{}

// Contains reports whether dn is in the set.
func (s DNSet) Contains(dn string) bool {
	_, ok := s[dn]
	return ok
}

// endpoint is the parsed, validated form of an endpoint URL.
type endpoint struct {
	url    string
	host   string
	port   int
	useTLS bool
}

const (
	defaultPlainPort = 389
	defaultTLSPort   = 636

	defaultTimeout = 30 * time.Second

	maxReferralDepth = 3
)

// parseEndpointURL validates a directory URL and resolves its default port.
func parseEndpointURL(rawURL string) (*endpoint, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("directory URL cannot be empty")
	}

	var useTLS bool
	rest := rawURL
	switch {
	case strings.HasPrefix(rest, "ldaps://"):
		useTLS = true
		rest = strings.TrimPrefix(rest, "ldaps://")
	case strings.HasPrefix(rest, "ldap://"):
		rest = strings.TrimPrefix(rest, "ldap://")
	default:
		return nil, fmt.Errorf("unsupported scheme in %q, must be ldap:// or ldaps://", rawURL)
	}

	host := rest
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if host == "" {
		return nil, fmt.Errorf("directory URL %q has no host", rawURL)
	}

	port := defaultPlainPort
	if useTLS {
		port = defaultTLSPort
	}
	if h, p, err := net.SplitHostPort(host); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("invalid port in directory URL %q", rawURL)
		}
		host, port = h, n
	} else {
		// No port given. A bracketed IPv6 literal keeps the default port.
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}

	scheme := "ldap"
	if useTLS {
		scheme = "ldaps"
	}
	return &endpoint{
		url:    fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(port))),
		host:   host,
		port:   port,
		useTLS: useTLS,
	}, nil
}
