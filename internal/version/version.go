// Package version holds build metadata injected with -ldflags -X.
package version

import (
	"fmt"
	"io"
	"runtime"
)

var (
	App       = "ssocenter"
	Version   string
	GitCommit string
	BuildTime string
)

// Info is the build metadata of the running binary.
type Info struct {
	App       string `json:"app"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the current build metadata.
func Get() Info {
	return Info{
		App:       App,
		Version:   getVersion(),
		GitCommit: getShortCommit(),
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Fprint writes the version information to w
func Fprint(w io.Writer) {
	info := Get()
	fmt.Fprintf(w, "%s version %s\n", info.App, info.Version)
	if info.GitCommit != "" {
		fmt.Fprintf(w, "Git commit: %s\n", info.GitCommit)
	}
	if info.BuildTime != "" {
		fmt.Fprintf(w, "Build time: %s\n", info.BuildTime)
	}
	fmt.Fprintf(w, "Go version: %s\n", info.GoVersion)
	fmt.Fprintf(w, "Built for: %s\n", info.Platform)
}

func getShortCommit() string {
	if len(GitCommit) > 7 {
		return GitCommit[:7]
	}
	return GitCommit
}

func getVersion() string {
	if Version != "" {
		return Version
	}
	return "dev"
}
