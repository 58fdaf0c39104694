package env

const AppName = "fsbrepack"

// Set at build time through -ldflags.
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)
