package config

import (
	"os"
	"strings"

	"github.com/dmitrijs2005/accounts/internal/flagx"
	"github.com/joho/godotenv"
)

// parseEnv overlays settings from process environment variables. A .env file
// is loaded first: the path given with -env, or ./.env when present.
// Variables already set in the environment win over the file.
//
// Recognised variables:
//
//	PORT              REST port (becomes ":<PORT>")
//	HTTP_ADDR         REST bind address (wins over PORT)
//	GRPC_ADDR         gRPC health bind address
//	DATABASE_URL      PostgreSQL DSN
//	JWT_SECRET        standard token key
//	JWT_SECRET_ADMIN  elevated token key
//	AMQP_URL          RabbitMQ URL for account events
//	CORS_ORIGINS      comma-separated list of allowed origins
//	LOG_LEVEL         debug|info|warn|error
func parseEnv(config *Config) {
	if path := flagx.EnvFileFlags(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else {
		_ = godotenv.Load()
	}

	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		config.EndpointAddrHTTP = ":" + v
	}
	setString(&config.EndpointAddrHTTP, "HTTP_ADDR")
	setString(&config.EndpointAddrGRPC, "GRPC_ADDR")
	setString(&config.DatabaseDSN, "DATABASE_URL")
	setString(&config.SecretKey, "JWT_SECRET")
	setString(&config.AdminSecretKey, "JWT_SECRET_ADMIN")
	setString(&config.AMQPURL, "AMQP_URL")
	setString(&config.LogLevel, "LOG_LEVEL")

	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok && v != "" {
		config.CORSAllowedOrigins = splitList(v)
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
