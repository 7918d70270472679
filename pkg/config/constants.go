package config

const (
	// EnvPrefix namespaces every environment variable the platform reads.
	EnvPrefix = "BRANDKART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "BRANDKART_DB_DSN"
	EnvDBHost = "BRANDKART_DB_HOST"
	EnvDBUser = "BRANDKART_DB_USER"
	EnvDBName = "BRANDKART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
