// Package version reports which iresolve build is running.
package version

// Release builds stamp these with
// -ldflags "-X iresolve/internal/version.Version=0.3.1 -X iresolve/internal/version.Commit=$(git rev-parse HEAD)"
var (
	Version   = "0.3.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// shortCommit is the length git abbreviates hashes to.
const shortCommit = 7

// Info is the version with the abbreviated commit when one was stamped.
func Info() string {
	if Commit == "unknown" || len(Commit) <= shortCommit {
		return Version
	}
	return Version + " (" + Commit[:shortCommit] + ")"
}

// Full is the --version output.
func Full() string {
	return "iresolve " + Info() + "\n" +
		"commit " + Commit + "\n" +
		"built " + BuildDate
}
