package guard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/readmd/gateway/internal/errkind"
)

func TestCheckURL_Syntax(t *testing.T) {
	g := New()

	cases := []struct {
		name    string
		url     string
		blocked bool
	}{
		{"plain https", "https://example.com/a", false},
		{"ftp scheme", "ftp://example.com", true},
		{"localhost", "http://localhost/", true},
		{"loopback literal", "http://127.0.0.1/", true},
		{"decimal ip", "http://2130706433/", true},
		{"hex ip", "http://0x7f000001/", true},
		{"leading zero octet", "http://127.0.0.01/", true},
		{"metadata host", "http://metadata.google.internal/", true},
		{"private 10/8", "http://10.1.2.3/", true},
		{"private 192.168", "http://192.168.1.1/", true},
		{"carrier nat 100.64", "http://100.64.0.1/", true},
		{"public ip literal", "http://93.184.216.34/", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := g.CheckURL(tc.url)
			if tc.blocked {
				assert.Error(t, err)
				assert.Equal(t, errkind.BlockedUrl, errkind.Of(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckURLFull_DNSBlocksPrivate(t *testing.T) {
	g := New()
	// localhost.localdomain-style names aren't pre-blocked by syntax rules
	// but must be blocked once resolved; we can't rely on network access in
	// this test environment, so we exercise the cache path directly instead.
	g.storeCache("internal.example.test", true)
	err := g.checkDNS(context.Background(), "internal.example.test")
	assert.Error(t, err)
	assert.Equal(t, errkind.BlockedUrl, errkind.Of(err))
}

func TestDNSCacheSweep(t *testing.T) {
	g := New()
	for i := 0; i < dnsCacheSweepCap+10; i++ {
		g.storeCache(string(rune('a'+i%26))+"-host", false)
	}
	assert.LessOrEqual(t, len(g.cache), dnsCacheSweepCap+10)
}
