package config

import (
	"os"
	"path/filepath"

	"github.com/eskildsen/stevedore/internal/constants"
	"github.com/joho/godotenv"
)

// LoadEnvFiles loads .env from the working directory and from any of the
// given paths' directories. Existing environment variables win, matching
// dotenv conventions.
func LoadEnvFiles(paths ...string) {
	seen := map[string]struct{}{}
	candidates := []string{constants.ConfigEnvFileName}
	for _, p := range paths {
		if p == "" || p == "." {
			continue
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			p = filepath.Dir(p)
		}
		candidates = append(candidates, filepath.Join(p, constants.ConfigEnvFileName))
	}
	for _, candidate := range candidates {
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		if _, err := os.Stat(candidate); err == nil {
			// godotenv.Load never overrides variables already set.
			_ = godotenv.Load(candidate)
		}
	}
}
