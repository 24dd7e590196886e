package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func noVCS() string { return "" }

func TestCapture_Defaults(t *testing.T) {
	info := capture(env(nil), noVCS)
	assert.Equal(t, "dev", info.BuildID)
	assert.Equal(t, "dev", info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestCapture_DeploymentEnv(t *testing.T) {
	info := capture(env(map[string]string{
		"REACT_APP_VERSION": "1.2.3",
		"REACT_APP_GIT_SHA": "0123456789abcdef",
	}), noVCS)

	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "0123456789abcdef", info.GitSha)
	assert.Equal(t, "1.2.3-0123456", info.BuildID)
}

func TestCapture_FallsBackToVCS(t *testing.T) {
	info := capture(env(nil), func() string { return "feedbeef" })
	assert.Equal(t, "dev-feedbee", info.BuildID)
}

func TestGet_IsStable(t *testing.T) {
	assert.Equal(t, Get(), Get())
	assert.Contains(t, Get().String(), Get().BuildID)
}
