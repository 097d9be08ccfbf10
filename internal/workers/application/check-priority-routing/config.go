// internal/workers/application/check-priority-routing/config.go
package checkpriorityrouting

import "intake-bot/internal/common/config"

// Config holds the routing thresholds on the 0..100 score scale.
type Config struct {
	AutoAcceptThreshold float64
	BorderlineMin       float64
	HardRejectThreshold float64
}

func LoadConfig() *Config {
	return &Config{
		AutoAcceptThreshold: 55,
		BorderlineMin:       30,
		HardRejectThreshold: 20,
	}
}

// FromApplication copies the loaded thresholds as is. The loader already
// applied defaults, so a zero here is an explicit setting.
func FromApplication(ac config.ApplicationConfig) *Config {
	return &Config{
		AutoAcceptThreshold: ac.AutoAcceptThreshold,
		BorderlineMin:       ac.BorderlineMin,
		HardRejectThreshold: ac.HardRejectThreshold,
	}
}
