package config

import "strings"

// Deployment environments
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// IsDeployed reports whether env handles real documents. Deployed
// environments get the strict checks of LoadWithValidation.
func IsDeployed(env string) bool {
	return env == EnvProduction || env == EnvStaging
}

func normalizeEnvironment(env string) string {
	env = strings.ToLower(strings.TrimSpace(env))
	if env == "" {
		return EnvDevelopment
	}
	return env
}
