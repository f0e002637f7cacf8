package server

import (
	"fmt"
	"strconv"

	"github.com/heliosproxy/helios/pkg/corerr"
)

// computeVersionStat turns a build SHA into the first 24 bits of it, as a
// uint64, matching SPEC_FULL.md §4's carried-over server.version stat. A
// SHA that can't be parsed as hex is a ConfigError: running an
// un-fingerprinted build is worse than refusing to start.
func computeVersionStat(sha string) (uint64, error) {
	if len(sha) < 6 {
		return 0, corerr.NewConfigError("build_sha", fmt.Sprintf("%q is too short to fingerprint (need at least 6 hex chars)", sha))
	}
	v, err := strconv.ParseUint(sha[:6], 16, 32)
	if err != nil {
		return 0, corerr.NewConfigError("build_sha", fmt.Sprintf("%q is not valid hex: %v", sha, err))
	}
	return v, nil
}

// versionString renders a version stat back into the hex form admin's
// /hot_restart_version endpoint and the hot-restart RPC's version() op
// report.
func versionString(stat uint64) string {
	return fmt.Sprintf("%06x", stat)
}
