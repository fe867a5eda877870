// Package misc holds build time program information.
package misc

// Set with -ldflags "-X pmix/misc.version=... -X pmix/misc.gitHash=..."
var (
	appName = "pmix"
	version = "dev"
	gitHash = "unknown"
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return gitHash
}
