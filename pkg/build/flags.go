// SPDX-License-Identifier: MIT
//
// Package build exposes the build metadata embedded at link time:
//
//	go build -ldflags "-X vocalosc/pkg/build.buildName=vocalosc \
//	  -X vocalosc/pkg/build.buildVersion=0.1.0 ..."
//
// Development builds carry no flags; Initialize reports that and the
// defaults below stay in place.
package build

import (
	"errors"
	"fmt"
)

// Info holds build-time information.
type Info struct {
	Name        string // Application name
	Description string // One-line summary for help output
	Time        string // Build timestamp
	Commit      string // Git commit hash
	Version     string // Semantic version
}

// String formats the information for --version output.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &Info{
		Name:        "vocalosc",
		Description: "Real-time vocal analysis streamed as OSC parameters",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize validates and copies build information from ldflags variables
// into the build info. It returns an error naming every missing flag and
// leaves the defaults untouched in that case.
func Initialize() error {
	var errs []error
	if buildName == "" {
		errs = append(errs, errors.New("BuildName is required"))
	}
	if buildTime == "" {
		errs = append(errs, errors.New("BuildTime is required"))
	}
	if buildCommit == "" {
		errs = append(errs, errors.New("BuildCommit is required"))
	}
	if buildVersion == "" {
		errs = append(errs, errors.New("BuildVersion is required"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns a copy of the current build information.
func GetBuildFlags() Info {
	return *buildFlags
}
