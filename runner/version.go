package runner

// Injected at build time via -ldflags "-X github.com/sadewadee/mapminer/runner.Version=..."
var (
	Version   = "dev"
	BuildDate = "unknown"
	Commit    = "none"
)
