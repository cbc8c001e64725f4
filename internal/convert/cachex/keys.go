package cachex

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

var trackingParamPrefixes = []string{"utm_"}

var trackingParamNames = map[string]bool{
	"fbclid": true, "gclid": true, "mc_cid": true, "mc_eid": true,
}

// NormalizeURL removes tracking query params, sorts the remaining ones,
// and strips the fragment, matching the conversion cache key's
// canonicalisation rule.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""

	q := u.Query()
	for name := range q {
		lower := strings.ToLower(name)
		if trackingParamNames[lower] {
			q.Del(name)
			continue
		}
		for _, prefix := range trackingParamPrefixes {
			if strings.HasPrefix(lower, prefix) {
				q.Del(name)
				break
			}
		}
	}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		for j, v := range q[k] {
			if j > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(v)
		}
	}
	u.RawQuery = sb.String()

	return u.String()
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:32]
}

// HashHex exposes the key layer's truncated-SHA-256 idiom for callers that
// need the same 32-hex fingerprint outside a cache key, e.g. the gateway's
// weak ETag over a response's markdown body.
func HashHex(s string) string { return hashHex(s) }

// ConversionKey builds the conversion cache key for a normalized URL and
// an options suffix (the client-controlled knobs that affect the output).
func ConversionKey(rawURL, optionsSuffix string) string {
	return "cache:" + hashHex(NormalizeURL(rawURL)+"|"+optionsSuffix)
}

// ExtractKey builds the /extract endpoint's cache key, keyed on both the
// URL and the canonicalised request schema so distinct schemas never
// collide.
func ExtractKey(rawURL, canonicalSchemaJSON string) string {
	return "extract:" + hashHex(NormalizeURL(rawURL)) + ":" + hashHex(canonicalSchemaJSON)
}

// TTLForTier returns the cache TTL (seconds) for a conversion result's
// tier, per the tier-dependent TTL table.
func TTLForTier(tier string) int {
	switch {
	case tier == "youtube":
		return 3600
	case strings.HasPrefix(tier, "document:"):
		return 7200
	case strings.HasPrefix(tier, "browser"):
		return 600
	case tier == "feed", tier == "fetch", tier == "llm", tier == "baas":
		return 300
	default:
		return 300
	}
}

// ExtractTTL is the fixed TTL for the /extract endpoint's cache.
const ExtractTTL = 3600
