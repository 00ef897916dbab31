package version

import (
	"fmt"
	"runtime"
)

// These values are overridden at build time via -ldflags "-X ...".
var (
	Version      = "dev"
	GitCommit    = "unknown"
	GitTreeState = "unknown" // clean|dirty|unknown
	BuildDate    = "unknown" // RFC3339 UTC preferred
)

type Info struct {
	Version      string
	GitCommit    string
	GitTreeState string
	BuildDate    string
	GoVersion    string
	Platform     string
}

func Get() Info {
	return Info{
		Version:      Version,
		GitCommit:    GitCommit,
		GitTreeState: GitTreeState,
		BuildDate:    BuildDate,
		GoVersion:    runtime.Version(),
		Platform:     fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// Details returns labelled fields for display, leaving out values that were never stamped.
func (i Info) Details() [][2]string {
	var out [][2]string
	add := func(label, value string) {
		if value != "" && value != "unknown" {
			out = append(out, [2]string{label, value})
		}
	}
	add("GitCommit", i.GitCommit)
	add("GitTreeState", i.GitTreeState)
	add("BuildDate", i.BuildDate)
	add("GoVersion", i.GoVersion)
	add("Platform", i.Platform)
	return out
}
