// internal/workers/application/validate-application-data/config.go
package validateapplicationdata

type Config struct {
	PreviewLength int // review card truncation
}

func LoadConfig() *Config {
	return &Config{
		PreviewLength: 200,
	}
}
