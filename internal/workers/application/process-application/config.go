// internal/workers/application/process-application/config.go
package processapplication

type Config struct {
	AuditRationaleLen int // rationale excerpt in the "Application Scored" entry
}

func LoadConfig() *Config {
	return &Config{
		AuditRationaleLen: 300,
	}
}
