package cmd

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labpool/metapool/pool"
	"github.com/labpool/metapool/pool/plate"
)

func TestResolveConfigPath_FlagWinsOverEnvironment(t *testing.T) {
	// GIVEN METAPOOL_CONFIG is set
	t.Setenv(configEnvVar, "/from/env.yaml")

	// WHEN the flag is set THEN it wins
	assert.Equal(t, "/from/flag.yaml", resolveConfigPath("/from/flag.yaml"))
	// WHEN the flag is empty THEN the environment is used
	assert.Equal(t, "/from/env.yaml", resolveConfigPath(""))
}

func TestResolveConfigPath_NeitherSet_Empty(t *testing.T) {
	t.Setenv(configEnvVar, "")
	assert.Equal(t, "", resolveConfigPath(""))
}

func TestLoadEnv_MissingFile_NotAnError(t *testing.T) {
	assert.NoError(t, loadEnv(t.TempDir()+"/absent.env"))
	assert.NoError(t, loadEnv(""))
}

func TestLoadEnv_SetsConfigPathForResolution(t *testing.T) {
	// GIVEN a dotenv file naming a policy file, and no METAPOOL_CONFIG in the environment
	t.Setenv(configEnvVar, "")
	require.NoError(t, os.Unsetenv(configEnvVar))
	envPath := writeTempFile(t, ".env", configEnvVar+"=/lab/policy.yaml\n")

	// WHEN the env file is loaded
	require.NoError(t, loadEnv(envPath))

	// THEN the policy path resolves from it
	assert.Equal(t, "/lab/policy.yaml", resolveConfigPath(""))
}

func TestLoadEnv_DoesNotOverrideExistingVariable(t *testing.T) {
	// GIVEN METAPOOL_CONFIG already set in the process
	t.Setenv(configEnvVar, "/already/set.yaml")
	envPath := writeTempFile(t, ".env", configEnvVar+"=/lab/policy.yaml\n")

	// WHEN the env file is loaded
	require.NoError(t, loadEnv(envPath))

	// THEN the process value is kept
	assert.Equal(t, "/already/set.yaml", resolveConfigPath(""))
}

func TestLoadBundle_EmptyPath_Defaults(t *testing.T) {
	b, err := loadBundle("")
	require.NoError(t, err)
	assert.Equal(t, plate.Plate384, b.Shape())
	assert.Equal(t, pool.PolicyEqualMolar, b.Allocator().Name())
}

func TestLoadBundle_ValidFile(t *testing.T) {
	path := writeTempFile(t, "policy.yaml", "plate:\n  format: \"96\"\npooling:\n  policy: min-volume\n")

	b, err := loadBundle(path)
	require.NoError(t, err)
	assert.Equal(t, plate.Plate96, b.Shape())
	assert.Equal(t, pool.PolicyMinVolume, b.Allocator().Name())
}

func TestLoadBundle_InvalidValues_ErrInvalidConfig(t *testing.T) {
	path := writeTempFile(t, "policy.yaml", "pooling:\n  total_nmol: 0\n")

	_, err := loadBundle(path)
	assert.ErrorIs(t, err, pool.ErrInvalidConfig)
}

func TestLoadBundle_MissingFile_Error(t *testing.T) {
	_, err := loadBundle(t.TempDir() + "/nope.yaml")
	assert.Error(t, err)
}
