package info

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
)

var (
	name      = "[NAME]"
	version   = "dev build"
	buildTime = "[build time unknown]"

	info     *Info
	loadInfo sync.Once
)

// Info holds the meta information of the program.
type Info struct {
	Name      string
	Version   string
	BuildTime string
	GoVersion string

	Commit     string
	CommitTime string
	Dirty      bool
}

// Set sets the name and version of the program. It must be called before
// GetInfo. An empty version keeps the version set at build time.
func Set(setName, setVersion string) {
	name = setName
	if setVersion != "" {
		version = setVersion
	}
}

// GetInfo returns the meta information of the program.
func GetInfo() *Info {
	loadInfo.Do(func() {
		info = &Info{
			Name:       name,
			Version:    version,
			BuildTime:  buildTime,
			GoVersion:  runtime.Version(),
			Commit:     "[commit unknown]",
			CommitTime: "[commit time unknown]",
		}

		buildInfo, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, setting := range buildInfo.Settings {
			switch setting.Key {
			case "vcs.revision":
				info.Commit = setting.Value
			case "vcs.time":
				info.CommitTime = setting.Value
			case "vcs.modified":
				info.Dirty = setting.Value == "true"
			}
		}
	})

	return info
}

// Version returns the short version string. Builds from a modified
// checkout are marked with a star.
func Version() string {
	info := GetInfo()
	if info.Dirty {
		return info.Version + "*"
	}
	return info.Version
}

// FullVersion returns the detailed version string.
func FullVersion() string {
	info := GetInfo()
	builder := new(strings.Builder)

	fmt.Fprintf(builder, "%s %s\n", info.Name, Version())
	fmt.Fprintf(builder, "\nbuilt with %s %s/%s\n", info.GoVersion, runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(builder, "  at %s\n", info.BuildTime)
	fmt.Fprintf(builder, "\ncommit %s\n", info.Commit)
	fmt.Fprintf(builder, "  at %s\n", info.CommitTime)

	return builder.String()
}
