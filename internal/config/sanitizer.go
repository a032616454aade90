package config

import "encoding/json"

const redactedValue = "***REDACTED***"

// Sanitize returns a deep copy of cfg with credentials replaced by a
// redaction marker, safe to log or serve from the admin config endpoint.
func Sanitize(cfg *Config) *Config {
	sanitized := deepCopyConfig(cfg)

	sanitized.Store.Password = redactedValue
	sanitized.Redis.Password = redactedValue
	sanitized.Backend.Aggregator.AuthPass = redactedValue
	sanitized.Backend.Direct.APIKey = redactedValue

	return sanitized
}

func deepCopyConfig(cfg *Config) *Config {
	data, err := json.Marshal(cfg)
	if err != nil {
		return cfg
	}
	var copied Config
	if err := json.Unmarshal(data, &copied); err != nil {
		return cfg
	}
	return &copied
}
