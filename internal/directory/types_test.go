package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpointURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantURL  string
		wantHost string
		wantPort int
		wantTLS  bool
		wantErr  bool
	}{
		{
			name:     "plain with default port",
			url:      "ldap://ldap.example.com",
			wantURL:  "ldap://ldap.example.com:389",
			wantHost: "ldap.example.com",
			wantPort: 389,
		},
		{
			name:     "plain with explicit port",
			url:      "ldap://127.0.0.1:10389",
			wantURL:  "ldap://127.0.0.1:10389",
			wantHost: "127.0.0.1",
			wantPort: 10389,
		},
		{
			name:     "tls with default port",
			url:      "ldaps://ldap.example.com",
			wantURL:  "ldaps://ldap.example.com:636",
			wantHost: "ldap.example.com",
			wantPort: 636,
			wantTLS:  true,
		},
		{
			name:     "ipv6 literal with default port",
			url:      "ldap://[::1]",
			wantURL:  "ldap://[::1]:389",
			wantHost: "::1",
			wantPort: 389,
		},
		{
			name:     "ipv6 literal with explicit port",
			url:      "ldaps://[2001:db8::10]:1636",
			wantURL:  "ldaps://[2001:db8::10]:1636",
			wantHost: "2001:db8::10",
			wantPort: 1636,
			wantTLS:  true,
		},
		{
			name:     "trailing path is dropped",
			url:      "ldap://ldap.example.com:389/dc=example,dc=com",
			wantURL:  "ldap://ldap.example.com:389",
			wantHost: "ldap.example.com",
			wantPort: 389,
		},
		{name: "empty", url: "", wantErr: true},
		{name: "wrong scheme", url: "http://ldap.example.com", wantErr: true},
		{name: "no host", url: "ldap://", wantErr: true},
		{name: "bad port", url: "ldap://host:notaport", wantErr: true},
		{name: "port out of range", url: "ldap://host:70000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := parseEndpointURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, ep.url)
			assert.Equal(t, tt.wantHost, ep.host)
			assert.Equal(t, tt.wantPort, ep.port)
			assert.Equal(t, tt.wantTLS, ep.useTLS)
		})
	}
}

func TestParseReferralPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    ReferralPolicy
		wantErr bool
	}{
		{in: "ignore", want: ReferralIgnore},
		{in: "follow", want: ReferralFollow},
		{in: "FOLLOW", want: ReferralFollow},
		{in: " ignore ", want: ReferralIgnore},
		{in: "", want: ReferralIgnore},
		{in: "chase", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseReferralPolicy(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReferralPolicyString(t *testing.T) {
	assert.Equal(t, "ignore", ReferralIgnore.String())
	assert.Equal(t, "follow", ReferralFollow.String())
	assert.Equal(t, "unknown", ReferralPolicy(42).String())
}

func TestParseReferralURL(t *testing.T) {
	t.Run("with replacement base", func(t *testing.T) {
		ep, base, err := parseReferralURL("ldap://other.example.com:1389/ou=groups,dc=example,dc=com")
		require.NoError(t, err)
		assert.Equal(t, "ldap://other.example.com:1389", ep.url)
		assert.Equal(t, "ou=groups,dc=example,dc=com", base)
	})

	t.Run("without base", func(t *testing.T) {
		ep, base, err := parseReferralURL("ldaps://other.example.com")
		require.NoError(t, err)
		assert.Equal(t, "ldaps://other.example.com:636", ep.url)
		assert.Empty(t, base)
	})

	t.Run("no host", func(t *testing.T) {
		_, _, err := parseReferralURL("ldap:///ou=groups")
		require.Error(t, err)
	})
}

func TestDNSetContains(t *testing.T) {
	s := DNSet{"uid=alice,dc=example,dc=com": {}}
	assert.True(t, s.Contains("uid=alice,dc=example,dc=com"))
	assert.False(t, s.Contains("uid=bob,dc=example,dc=com"))
}
