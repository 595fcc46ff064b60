// Package version holds build metadata injected at link time.
package version

import "runtime"

// Build information. Populated via -ldflags at build time:
//
//	-X github.com/jackzampolin/folio/version.GitRelease=v0.1.0
//	-X github.com/jackzampolin/folio/version.GitCommit=abc1234
//	-X github.com/jackzampolin/folio/version.GitCommitDate=2026-01-01
var (
	// GitRelease is the semantic version or tag of this build.
	GitRelease = "dev"

	// GitCommit is the git commit hash of this build.
	GitCommit = "unknown"

	// GitCommitDate is the commit date of this build.
	GitCommitDate = "unknown"

	// GoInfo reports the Go toolchain used for this build.
	GoInfo = runtime.Version()
)
