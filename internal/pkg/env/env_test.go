package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withEnv(t *testing.T, values map[string]string) {
	t.Helper()
	prev := Env
	Env = values
	t.Cleanup(func() { Env = prev })
}

func TestGetEnvPrefersLoadedMap(t *testing.T) {
	withEnv(t, map[string]string{"PAWPANTRY_TEST_KEY": "from-file"})
	t.Setenv("PAWPANTRY_TEST_KEY", "from-os")

	assert.Equal(t, "from-file", GetEnv("PAWPANTRY_TEST_KEY", "def"))
}

func TestGetEnvFallsBackToOS(t *testing.T) {
	withEnv(t, map[string]string{})
	t.Setenv("PAWPANTRY_TEST_KEY", "from-os")

	assert.Equal(t, "from-os", GetEnv("PAWPANTRY_TEST_KEY", "def"))
	assert.Equal(t, "def", GetEnv("PAWPANTRY_MISSING_KEY", "def"))
}

func TestTypedGetters(t *testing.T) {
	withEnv(t, map[string]string{
		"INT_OK":   "12",
		"INT_BAD":  "twelve",
		"DUR_OK":   "90m",
		"DUR_BAD":  "soon",
		"BOOL_OK":  "true",
		"BOOL_BAD": "maybe",
	})

	assert.Equal(t, 12, GetEnvInt("INT_OK", 3))
	assert.Equal(t, 3, GetEnvInt("INT_BAD", 3))
	assert.Equal(t, 3, GetEnvInt("INT_MISSING", 3))

	assert.Equal(t, 90*time.Minute, GetEnvDuration("DUR_OK", time.Hour))
	assert.Equal(t, time.Hour, GetEnvDuration("DUR_BAD", time.Hour))

	assert.True(t, GetEnvBool("BOOL_OK", false))
	assert.False(t, GetEnvBool("BOOL_BAD", false))
}
