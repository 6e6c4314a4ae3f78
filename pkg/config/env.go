package config

// Deployment environments, matched against FERMENTUM_SERVER_ENVIRONMENT.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// IsProductionLike reports whether an environment must meet production
// configuration requirements. Staging runs against real brokers and
// databases, so it is held to the same standard.
func IsProductionLike(environment string) bool {
	return environment == EnvProduction || environment == EnvStaging
}
