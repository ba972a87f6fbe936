package config

import "time"

// Dev server timeouts
const (
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Dev server access token lifetime and expired-session sweep interval
const (
	DevAccessTokenTTL       = 15 * time.Minute
	DevSessionSweepInterval = 5 * time.Minute
)
