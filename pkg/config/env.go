package config

// EnvPrefix is passed to envconfig; variables carry explicit names so the
// prefix only matters for fields without a tag.
const EnvPrefix = "agrofarm"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv    = "AGROFARM_APP_ENV"
	EnvPort      = "AGROFARM_APP_PORT"
	EnvDBDSN     = "AGROFARM_DB_DSN"
	EnvDBHost    = "AGROFARM_DB_HOST"
	EnvDBUser    = "AGROFARM_DB_USER"
	EnvDBName    = "AGROFARM_DB_NAME"
	EnvRedisURL  = "AGROFARM_REDIS_URL"
	EnvJWTSecret = "AGROFARM_JWT_SECRET"
	EnvJWTIssuer = "AGROFARM_JWT_ISSUER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
