package apiclient

import (
	"net/http"

	"github.com/Masterminds/semver/v3"
	"github.com/wanderer-industries/topologyd/errors"
)

// supportedRemoteVersion is the range of remote topology API versions this
// client speaks to, the same way the teacher's plugin registry checks a
// plugin's declared version against the running host version.
var supportedRemoteVersion = mustConstraint(">= 1.0.0, < 3.0.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// checkRemoteVersion validates the X-Api-Version response header, if
// present, against supportedRemoteVersion. A missing header is treated as
// compatible (older deployments may not advertise one).
func checkRemoteVersion(headers http.Header) error {
	raw := headers.Get("X-Api-Version")
	if raw == "" {
		return nil
	}

	v, err := semver.NewVersion(raw)
	if err != nil {
		return errors.Wrapf(err, "apiclient: invalid remote API version %q", raw)
	}
	if !supportedRemoteVersion.Check(v) {
		return errors.Newf("apiclient: remote API version %s is outside the supported range %s", raw, supportedRemoteVersion.String())
	}
	return nil
}
