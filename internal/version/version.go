// Package version identifies the running build so clients can detect skew.
package version

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"sync"
)

// Build-time variables (override via -ldflags -X ...).
// Example:
//
//	go build -ldflags "-X github.com/dabendan2/file-explorer/internal/version.Version=1.4.0 -X github.com/dabendan2/file-explorer/internal/version.Commit=abcd123"
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

// Info is the version probe payload.
type Info struct {
	BuildID   string `json:"buildId"`
	Version   string `json:"version"`
	GitSha    string `json:"gitSha,omitempty"`
	BuildDate string `json:"buildDate,omitempty"`
	GoVersion string `json:"goVersion"`
	Root      string `json:"root,omitempty"`
}

var (
	once    sync.Once
	current Info
)

// Get returns the build info captured on first use. Later calls return the
// same value.
func Get() Info {
	once.Do(func() { current = capture(os.Getenv, vcsRevision) })
	return current
}

// capture resolves the version from ldflags, then the deployment
// environment (REACT_APP_VERSION, REACT_APP_GIT_SHA), then VCS build info.
func capture(getenv func(string) string, vcs func() string) Info {
	info := Info{
		Version:   Version,
		GitSha:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
	if v := getenv("REACT_APP_VERSION"); v != "" && info.Version == "dev" {
		info.Version = v
	}
	if info.GitSha == "" {
		info.GitSha = getenv("REACT_APP_GIT_SHA")
	}
	if info.GitSha == "" {
		info.GitSha = vcs()
	}

	info.BuildID = info.Version
	if info.GitSha != "" {
		info.BuildID = fmt.Sprintf("%s-%s", info.Version, short(info.GitSha))
	}
	return info
}

func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

func short(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func (i Info) String() string {
	s := i.BuildID
	if i.BuildDate != "" {
		s += fmt.Sprintf(" built %s", i.BuildDate)
	}
	s += fmt.Sprintf(" [%s]", i.GoVersion)
	return s
}
