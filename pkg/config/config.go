package config

import "os"

// Config holds core configuration.
type Config struct {
	LogLevel         string
	SinkPath         string
	ArchivePath      string
	DeclarationsDir  string
	ApproverSecret   string
	TelemetryEnabled bool
	OTLPEndpoint     string
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	sinkPath := os.Getenv("AUDIT_SINK_PATH")
	if sinkPath == "" {
		sinkPath = "audit-log.md"
	}

	archivePath := os.Getenv("AUDIT_ARCHIVE_PATH")
	if archivePath == "" {
		archivePath = "audit-archive.db"
	}

	otlp := os.Getenv("OTLP_ENDPOINT")
	if otlp == "" {
		otlp = "localhost:4317"
	}

	return &Config{
		LogLevel:         logLevel,
		SinkPath:         sinkPath,
		ArchivePath:      archivePath,
		DeclarationsDir:  os.Getenv("CAPABILITY_DECLARATIONS_DIR"),
		ApproverSecret:   os.Getenv("APPROVER_TOKEN_SECRET"),
		TelemetryEnabled: os.Getenv("TELEMETRY_ENABLED") == "true",
		OTLPEndpoint:     otlp,
	}
}
