package config

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// IsProductionLike reports whether the environment must not fall back to development defaults
func IsProductionLike(environment string) bool {
	return environment == EnvStaging || environment == EnvProduction
}
