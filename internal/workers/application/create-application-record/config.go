// internal/workers/application/create-application-record/config.go
package createapplicationrecord

import "time"

type Config struct {
	Timeout time.Duration
	LockTTL time.Duration // submission lock lifetime per applicant
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
		LockTTL: 2 * time.Minute,
	}
}
