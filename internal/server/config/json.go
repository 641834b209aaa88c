package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/accounts/internal/flagx"
	"github.com/dmitrijs2005/accounts/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations use
// timex.Duration so both "168h" and integer nanoseconds are accepted.
// Fields left out of the file keep whatever value the earlier layers set.
type JsonConfig struct {
	EndpointAddrHTTP                  string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC                  string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                       string         `json:"database_dsn"`
	SecretKey                         string         `json:"secret_key"`
	AdminSecretKey                    string         `json:"admin_secret_key"`
	RegistrationTokenValidityDuration timex.Duration `json:"registration_token_validity_duration"`
	SessionTokenValidityDuration      timex.Duration `json:"session_token_validity_duration"`
	RequestTimeout                    timex.Duration `json:"request_timeout"`
	ShutdownTimeout                   timex.Duration `json:"shutdown_timeout"`
	HealthCheckInterval               timex.Duration `json:"health_check_interval"`
	BcryptCost                        int            `json:"bcrypt_cost"`
	MinPasswordEntropy                float64        `json:"min_password_entropy"`
	AMQPURL                           string         `json:"amqp_url"`
	EventsExchange                    string         `json:"events_exchange"`
	CORSAllowedOrigins                []string       `json:"cors_allowed_origins"`
	LogLevel                          string         `json:"log_level"`
}

// parseJson loads configuration values from the JSON file named by the
// -c / -config flag. Without the flag nothing is loaded. An unreadable file
// or invalid JSON panics: the server must not start on a half-read config.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	overlayString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	overlayString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	overlayString(&config.DatabaseDSN, c.DatabaseDSN)
	overlayString(&config.SecretKey, c.SecretKey)
	overlayString(&config.AdminSecretKey, c.AdminSecretKey)
	overlayString(&config.AMQPURL, c.AMQPURL)
	overlayString(&config.EventsExchange, c.EventsExchange)
	overlayString(&config.LogLevel, c.LogLevel)

	if c.RegistrationTokenValidityDuration.Duration > 0 {
		config.RegistrationTokenValidityDuration = c.RegistrationTokenValidityDuration.Duration
	}
	if c.SessionTokenValidityDuration.Duration > 0 {
		config.SessionTokenValidityDuration = c.SessionTokenValidityDuration.Duration
	}
	if c.RequestTimeout.Duration > 0 {
		config.RequestTimeout = c.RequestTimeout.Duration
	}
	if c.ShutdownTimeout.Duration > 0 {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if c.HealthCheckInterval.Duration > 0 {
		config.HealthCheckInterval = c.HealthCheckInterval.Duration
	}
	if c.BcryptCost > 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.MinPasswordEntropy > 0 {
		config.MinPasswordEntropy = c.MinPasswordEntropy
	}
	if len(c.CORSAllowedOrigins) > 0 {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
}

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
