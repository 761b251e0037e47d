package buildinfo

import "runtime/debug"

// Set with -ldflags "-X routeplan/internal/buildinfo.Version=..." at release.
var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// Info returns the link-time values, falling back to the VCS stamp the Go
// toolchain embeds when Commit was not set.
func Info() map[string]string {
	info := map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info["go"] = bi.GoVersion
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info["commit"] == "" {
					info["commit"] = s.Value
				}
			case "vcs.time":
				if info["builtAt"] == "" {
					info["builtAt"] = s.Value
				}
			}
		}
	}
	return info
}
