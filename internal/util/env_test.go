package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("MANAGEEASE_TEST_VALUE", "")
	assert.Equal(t, "fallback", EnvOrDefault("MANAGEEASE_TEST_VALUE", "fallback"))

	t.Setenv("MANAGEEASE_TEST_VALUE", "set")
	assert.Equal(t, "set", EnvOrDefault("MANAGEEASE_TEST_VALUE", "fallback"))
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("MANAGEEASE_TEST_TTL", "90s")
	assert.Equal(t, 90*time.Second, EnvDuration("MANAGEEASE_TEST_TTL", time.Minute))

	t.Setenv("MANAGEEASE_TEST_TTL", "soon")
	assert.Equal(t, time.Minute, EnvDuration("MANAGEEASE_TEST_TTL", time.Minute))
}

func TestEnvInt(t *testing.T) {
	t.Setenv("MANAGEEASE_TEST_LIMIT", " 250 ")
	assert.Equal(t, 250, EnvInt("MANAGEEASE_TEST_LIMIT", 100))

	t.Setenv("MANAGEEASE_TEST_LIMIT", "many")
	assert.Equal(t, 100, EnvInt("MANAGEEASE_TEST_LIMIT", 100))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, SplitList(" http://a, ,http://b "))
	assert.Nil(t, SplitList(""))
}
