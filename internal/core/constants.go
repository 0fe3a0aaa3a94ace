package core

import "time"

// DefaultSourceURL is the Court of Chancery opinions listing.
const DefaultSourceURL = "https://courts.delaware.gov/opinions/index.aspx?ag=court%20of%20chancery"

// Timeout defaults for a check run
const (
	DefaultRenderTimeout      = 60 * time.Second
	DefaultSettleDelay        = 5 * time.Second
	DefaultNetworkIdleTimeout = 15 * time.Second
	DefaultFetchTimeout       = 30 * time.Second
	DefaultSMTPTimeout        = 30 * time.Second
)

// Resource limits
const (
	MaxDocumentSize = 50 * 1024 * 1024 // 50MB
)

// Local paths
const (
	DefaultStateFile   = "seen_opinions.json"
	DefaultDownloadDir = "downloads"
)

// HTTP client configuration
const (
	UserAgent = "Mozilla/5.0 (compatible; opinionwatch/1.0)"
)
