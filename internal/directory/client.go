package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"
)

// existenceProbeLimit caps membership probes at a single entry: one match is
// enough, the enumeration is never drained further.
const existenceProbeLimit = 1

// Client validates credentials and answers authorization questions against
// one directory endpoint. It holds no open connections: every call dials,
// binds and closes its own short-lived connection, so concurrent calls are
// fully independent. A Client is immutable after construction and safe for
// concurrent use.
type Client struct {
	endpoint  *endpoint
	referral  ReferralPolicy
	timeout   time.Duration
	tlsConfig *tls.Config
	logger    *zap.Logger
}

// NewClient validates the endpoint configuration and, when a trust
// certificate is configured, loads it eagerly. Malformed URLs and unusable
// trust material abort construction; they indicate a broken deployment, not
// a transient condition.
func NewClient(cfg EndpointConfig) (*Client, error) {
	ep, err := parseEndpointURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var tlsConfig *tls.Config
	if cfg.TrustCertificate != "" {
		tlsConfig, err = LoadTrustConfig(cfg.TrustCertificate)
		if err != nil {
			return nil, err
		}
	}

	if !ep.useTLS {
		logger.Warn("passwords will be sent in the clear to the directory server, consider using ldaps://",
			zap.String("url", ep.url))
		if tlsConfig != nil {
			logger.Warn("trust certificate is configured but the endpoint is plaintext, it will not be used",
				zap.String("url", ep.url))
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		endpoint:  ep,
		referral:  cfg.ReferralPolicy,
		timeout:   timeout,
		tlsConfig: tlsConfig,
		logger:    logger,
	}, nil
}

// ValidatePassword authenticates the principal by binding as it and closing
// the connection immediately. A bind rejected for bad credentials returns
// ErrAccessDenied with no further detail; every other failure keeps its
// directory classification so callers can tell "wrong password" from
// "directory is down".
func (c *Client) ValidatePassword(ctx context.Context, principalDN, password string) error {
	return c.instrument(ctx, "validate_password", []zap.Field{
		zap.String("principal", principalDN),
	}, func(ctx context.Context) error {
		conn, err := c.open(ctx, BindCredentials{DN: principalDN, Password: password})
		if err != nil {
			return err
		}
		if err := conn.Close(); err != nil {
			return newDirectoryError("close", err)
		}
		return nil
	})
}

// IsGroupMember binds as the context principal and probes the subtree under
// searchBase for at least one entry matching groupFilter. The probe asks the
// server for a single entry; existence of one match decides the answer.
func (c *Client) IsGroupMember(ctx context.Context, searchBase, groupFilter, contextDN, contextPassword string) (bool, error) {
	creds := BindCredentials{DN: contextDN, Password: contextPassword}
	criteria := SearchCriteria{BaseDN: searchBase, Filter: groupFilter}

	var member bool
	err := c.instrument(ctx, "is_group_member", []zap.Field{
		zap.String("base_dn", searchBase),
		zap.String("filter", groupFilter),
	}, func(ctx context.Context) error {
		conn, err := c.open(ctx, creds)
		if err != nil {
			return err
		}
		defer conn.Close()

		result, err := searchSubtree(conn, criteria, existenceProbeLimit, int(c.timeout.Seconds()))
		if err != nil {
			// The server stopping at the one-entry limit still proves
			// existence: it only reports the limit after a match.
			if ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
				member = true
				return nil
			}
			return newDirectoryError("search", err)
		}
		if len(result.Entries) > 0 {
			member = true
			return nil
		}
		return c.followSearchReferrals(ctx, creds, criteria, result.Referrals, existenceProbeLimit, func(r *ldap.SearchResult, limited bool) {
			if limited || len(r.Entries) > 0 {
				member = true
			}
		})
	})
	if err != nil {
		return false, err
	}
	return member, nil
}

// LookupDistinguishedNames binds as the context principal, fully drains the
// subtree search and returns the set of matching entry DNs. Duplicates
// collapse; zero matches yield an empty set, not an error.
func (c *Client) LookupDistinguishedNames(ctx context.Context, searchBase, searchFilter, contextDN, contextPassword string) (DNSet, error) {
	creds := BindCredentials{DN: contextDN, Password: contextPassword}
	criteria := SearchCriteria{BaseDN: searchBase, Filter: searchFilter}

	dns := make(DNSet)
	collect := func(r *ldap.SearchResult, _ bool) {
		for _, entry := range r.Entries {
			dns[entry.DN] = struct{}{}
		}
	}

	err := c.instrument(ctx, "lookup_distinguished_names", []zap.Field{
		zap.String("base_dn", searchBase),
		zap.String("filter", searchFilter),
	}, func(ctx context.Context) error {
		conn, err := c.open(ctx, creds)
		if err != nil {
			return err
		}
		defer conn.Close()

		result, err := searchSubtree(conn, criteria, 0, int(c.timeout.Seconds()))
		if err != nil {
			return newDirectoryError("search", err)
		}
		collect(result, false)
		return c.followSearchReferrals(ctx, creds, criteria, result.Referrals, 0, collect)
	})
	if err != nil {
		return nil, err
	}
	return dns, nil
}

// Ping binds as the context principal and reads the root DSE, verifying that
// the endpoint is reachable and serving.
func (c *Client) Ping(ctx context.Context, contextDN, contextPassword string) error {
	return c.instrument(ctx, "ping", nil, func(ctx context.Context) error {
		conn, err := c.open(ctx, BindCredentials{DN: contextDN, Password: contextPassword})
		if err != nil {
			return err
		}
		defer conn.Close()

		req := ldap.NewSearchRequest(
			"", // root DSE
			ldap.ScopeBaseObject,
			ldap.NeverDerefAliases,
			1, int(c.timeout.Seconds()), false,
			"(objectClass=*)",
			[]string{"supportedLDAPVersion"},
			nil,
		)
		if _, err := conn.Search(req); err != nil {
			return newDirectoryError("search", err)
		}
		return nil
	})
}

// open dials the configured endpoint and binds as the given principal. The
// returned connection is scoped to exactly one call; the caller closes it on
// every exit path.
func (c *Client) open(ctx context.Context, creds BindCredentials) (*ldap.Conn, error) {
	conn, err := c.dial(ctx, c.endpoint)
	if err != nil {
		return nil, newDirectoryError("dial", err)
	}
	if err := conn.Bind(creds.DN, creds.Password); err != nil {
		conn.Close()
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return nil, ErrAccessDenied
		}
		return nil, newDirectoryError("bind", err)
	}
	return conn, nil
}

// dial opens the transport, injecting the per-client TLS configuration into
// this call's connection. go-ldap accepts the TLS configuration as a dial
// option, so no process-global socket-factory state is involved.
func (c *Client) dial(_ context.Context, ep *endpoint) (*ldap.Conn, error) {
	opts := []ldap.DialOpt{
		ldap.DialWithDialer(&net.Dialer{Timeout: c.timeout}),
	}
	if ep.useTLS {
		tlsConfig := c.tlsConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		opts = append(opts, ldap.DialWithTLSConfig(tlsConfig))
	}

	conn, err := ldap.DialURL(ep.url, opts...)
	if err != nil {
		return nil, err
	}
	conn.SetTimeout(c.timeout)
	return conn, nil
}

// searchSubtree issues one whole-subtree search on an already bound
// connection. Only entry DNs are of interest, so no attributes are requested.
func searchSubtree(conn *ldap.Conn, criteria SearchCriteria, sizeLimit, timeLimit int) (*ldap.SearchResult, error) {
	req := ldap.NewSearchRequest(
		criteria.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		sizeLimit, timeLimit, false,
		criteria.Filter,
		[]string{"1.1"}, // RFC 4511: request no attributes
		nil,
	)
	return conn.Search(req)
}

// followSearchReferrals applies the referral policy to the referrals of a
// completed search. Under ignore they are discarded; under follow each one is
// chased with a fresh connection, re-binding with the same per-call
// credentials. sizeLimit carries the originating search's limit so a
// membership probe stays a probe on referred hops.
func (c *Client) followSearchReferrals(ctx context.Context, creds BindCredentials, criteria SearchCriteria, referrals []string, sizeLimit int, visit func(r *ldap.SearchResult, limited bool)) error {
	if c.referral != ReferralFollow || len(referrals) == 0 {
		return nil
	}
	return c.chaseReferrals(ctx, creds, criteria, referrals, 1, sizeLimit, visit)
}

// chaseReferrals is the recursive hop of the follow policy. Depth is bounded;
// referral loops beyond the bound are silently dropped.
func (c *Client) chaseReferrals(ctx context.Context, creds BindCredentials, criteria SearchCriteria, referrals []string, depth, sizeLimit int, visit func(*ldap.SearchResult, bool)) error {
	if depth > maxReferralDepth {
		return nil
	}
	for _, ref := range referrals {
		ep, base, err := parseReferralURL(ref)
		if err != nil {
			return &DirectoryError{
				Operation: "referral",
				Category:  CategoryProtocol,
				Message:   err.Error(),
				Cause:     err,
			}
		}
		next := criteria
		if base != "" {
			next.BaseDN = base
		}
		if err := c.searchReferred(ctx, ep, creds, next, depth, sizeLimit, visit); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) searchReferred(ctx context.Context, ep *endpoint, creds BindCredentials, criteria SearchCriteria, depth, sizeLimit int, visit func(*ldap.SearchResult, bool)) error {
	conn, err := c.dial(ctx, ep)
	if err != nil {
		return newDirectoryError("dial", err)
	}
	defer conn.Close()

	if err := conn.Bind(creds.DN, creds.Password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return ErrAccessDenied
		}
		return newDirectoryError("bind", err)
	}

	result, err := searchSubtree(conn, criteria, sizeLimit, int(c.timeout.Seconds()))
	if err != nil {
		if sizeLimit > 0 && ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
			visit(&ldap.SearchResult{}, true)
			return nil
		}
		return newDirectoryError("search", err)
	}
	visit(result, false)
	if len(result.Referrals) > 0 {
		return c.chaseReferrals(ctx, creds, criteria, result.Referrals, depth+1, sizeLimit, visit)
	}
	return nil
}

// parseReferralURL splits a referral such as
// ldap://other.example.com:389/ou=groups,dc=example,dc=com into an endpoint
// and an optional replacement search base.
func parseReferralURL(ref string) (*endpoint, string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, "", fmt.Errorf("malformed referral URL %q: %w", ref, err)
	}
	if u.Host == "" {
		return nil, "", fmt.Errorf("referral URL %q has no host", ref)
	}
	ep, err := parseEndpointURL(u.Scheme + "://" + u.Host)
	if err != nil {
		return nil, "", fmt.Errorf("referral URL %q: %w", ref, err)
	}
	base := strings.TrimPrefix(u.Path, "/")
	return ep, base, nil
}
