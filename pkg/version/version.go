// Package version holds build metadata for the securelink CLI.
package version

import "fmt"

// This variables are injected at build time.

// Version hosts the version of the app.
var Version = "development"

// Commit is the commit hash of the build.
var Commit string

// BuildDate is the date it was built.
var BuildDate string

// GoVersion is the go version that was used to compile this.
var GoVersion string

// UserAgent returns the User-Agent string sent on outbound HTTP requests.
func UserAgent() string {
	return fmt.Sprintf("securelink/%s", Version)
}
