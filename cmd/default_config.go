package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/labpool/metapool/pool"
)

// configEnvVar names the environment variable holding the default policy path.
const configEnvVar = "METAPOOL_CONFIG"

// loadEnv reads KEY=VALUE pairs from path into the process environment.
// Variables already set are left alone, and a missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	logrus.Debugf("loaded environment from %s", path)
	return nil
}

// resolveConfigPath prefers the --config flag over $METAPOOL_CONFIG.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(configEnvVar)
}

// loadBundle parses and validates the policy file at path. An empty path
// yields the built-in defaults.
func loadBundle(path string) (*pool.PolicyBundle, error) {
	b := &pool.PolicyBundle{}
	if path != "" {
		var err error
		if b, err = pool.LoadPolicyBundle(path); err != nil {
			return nil, err
		}
		logrus.Infof("Loaded policy config from %s", path)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}
