package urlutil

import (
	"net/url"
	"strings"
)

// Target is a monitor URL broken into the pieces the measurement provider
// wants: a host (possibly host:port), a request path including the query,
// and a scheme.
type Target struct {
	Host     string
	Path     string
	Protocol string
}

// ParseTarget extracts host, path and protocol from a monitor URL. Missing
// pieces fall back to protocol "https" and path "/". Input that does not
// parse as a URL degrades to the whole string as host, so a bare hostname
// entered by a user still probes something sensible.
func ParseTarget(raw string) Target {
	t := Target{Host: raw, Path: "/", Protocol: "https"}

	s := raw
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return t
	}

	t.Host = u.Host
	if u.Scheme != "" {
		t.Protocol = u.Scheme
	}
	if u.Path != "" {
		t.Path = u.Path
	}
	if u.RawQuery != "" {
		t.Path += "?" + u.RawQuery
	}
	return t
}
