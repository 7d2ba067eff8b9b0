package gotlive

// Version information for gotlive.
// These values can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/ZaguanLabs/gotlive.GitCommit=$(git rev-parse HEAD)"
const (
	// Name is the application name.
	Name = "gotlive"

	// Description is a short description of the application.
	Description = "On-demand UI text localization engine"

	// Version is the semantic version of the application.
	Version = "0.1.0"

	// Repository is the source code repository URL.
	Repository = "https://github.com/ZaguanLabs/gotlive"
)

// BuildInfo contains build-time information.
var (
	// GitCommit is the git commit hash.
	GitCommit = "unknown"

	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// FullVersion returns the version string with optional build info.
func FullVersion() string {
	v := Version
	if GitCommit != "unknown" && GitCommit != "" {
		short := GitCommit
		if len(short) > 7 {
			short = short[:7]
		}
		v += "+" + short
	}
	return v
}

// UserAgent returns a user agent string for HTTP requests.
func UserAgent() string {
	return Name + "/" + Version
}
