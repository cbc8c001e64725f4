package consts

// Tier names the escalation stage whose output was ultimately chosen for a
// conversion result. See SPEC_FULL.md §4.10 / GLOSSARY.
type Tier string

const (
	TierFetch    Tier = "fetch"
	TierBrowser  Tier = "browser"
	TierLLM      Tier = "llm"
	TierBaasPfx  Tier = "baas:" // concatenated with a provider name, e.g. "baas:cloudflare"
	TierYouTube  Tier = "youtube"
	TierFeed     Tier = "feed"
	TierDocument Tier = "document:" // concatenated with a format, e.g. "document:pdf"
)

// Default tier-dependent cache TTLs (seconds), per SPEC_FULL.md §4.11.
const (
	TTLYouTube        = 3600
	TTLDocument       = 7200
	TTLBrowser        = 600
	TTLFetch          = 300
	TTLFeed           = 300
	TTLLLM            = 300
	TTLBaas           = 300
	TTLExtract        = 3600
	DefaultCacheTTL   = TTLFetch
)
