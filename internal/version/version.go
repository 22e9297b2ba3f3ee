// Package version reports educrawler build metadata.
//
// The variables are set with ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/educrawler/internal/version.Version=1.0.0 ..."
//
// A binary built without them falls back to the module build info.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	Dirty     = "false"
	BuildDate = "unknown" // RFC3339, UTC
)

// Info contains structured version information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Dirty     bool   `json:"dirty"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the current version information.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Dirty:     Dirty == "true",
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.Version == "dev" {
		fromBuildInfo(&info)
	}
	return info
}

// fromBuildInfo fills unset fields from the vcs stamps of the module build.
func fromBuildInfo(info *Info) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		info.Version = strings.TrimPrefix(v, "v")
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Dirty = info.Dirty || s.Value == "true"
		}
	}
}

// String returns the version with a -dirty suffix for modified trees.
func (i Info) String() string {
	if i.Dirty {
		return i.Version + "-dirty"
	}
	return i.Version
}

// Age describes how long ago the binary was built, or "" when unknown.
func (i Info) Age(now time.Time) string {
	built, err := time.Parse(time.RFC3339, i.BuildDate)
	if err != nil {
		return ""
	}
	return humanize.RelTime(built, now, "ago", "from now")
}

// String returns the single-line version of the running binary.
func String() string {
	return Get().String()
}

// Full returns a multi-line description of the running binary.
func Full() string {
	return Get().Full(time.Now())
}

// Full describes i with the build age relative to now.
func (i Info) Full(now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "educrawler %s\n", i)
	fmt.Fprintf(&sb, "  Commit:     %s\n", i.Commit)
	built := i.BuildDate
	if age := i.Age(now); age != "" {
		built += " (" + age + ")"
	}
	fmt.Fprintf(&sb, "  Built:      %s\n", built)
	fmt.Fprintf(&sb, "  Go version: %s\n", i.GoVersion)
	fmt.Fprintf(&sb, "  OS/Arch:    %s", i.Platform)
	return sb.String()
}
