// Package cors decides which browser origins may receive credentialed
// cross-origin responses. The decision is a pure function over an immutable
// Policy; the HTTP adapter lives in internal/api/middleware.
package cors

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultOrigins are always part of the allow-list.
var DefaultOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// DefaultTrustedSuffix is the hosting domain whose sites are trusted wholesale.
const DefaultTrustedSuffix = ".azurewebsites.net"

// SuffixMatch selects how the trusted suffix is compared with an origin.
type SuffixMatch string

const (
	// MatchContains admits any origin whose text contains the suffix anywhere.
	MatchContains SuffixMatch = "contains"
	// MatchHostSuffix admits only origins whose parsed host ends with the suffix.
	MatchHostSuffix SuffixMatch = "host_suffix"
)

// Reason explains a Decision.
type Reason string

const (
	ReasonNoOrigin      Reason = "no_origin"
	ReasonAllowList     Reason = "allow_list"
	ReasonTrustedSuffix Reason = "trusted_suffix"
	ReasonNotAllowed    Reason = "not_allowed"
)

// Decision is the outcome of Policy.Admit.
type Decision struct {
	Origin  string
	Allowed bool
	Reason  Reason
}

// Options are the inputs NewPolicy needs.
type Options struct {
	// Defaults replaces DefaultOrigins when non-nil.
	Defaults []string
	// Extra holds additional origins; each entry may itself be a
	// comma-separated list (the raw CORS_ORIGIN value).
	Extra []string
	// TrustedSuffix empty disables the suffix rule.
	TrustedSuffix string
	SuffixMatch   SuffixMatch
}

// Policy is immutable after NewPolicy returns and safe for concurrent use.
type Policy struct {
	origins []string
	members map[string]struct{}
	suffix  string
	match   SuffixMatch
}

// NewPolicy builds the allow-list once: defaults first, then the trimmed
// extra entries in order. Duplicates are kept.
func NewPolicy(opts Options) (*Policy, error) {
	match := opts.SuffixMatch
	if match == "" {
		match = MatchContains
	}
	switch match {
	case MatchContains, MatchHostSuffix:
	default:
		return nil, fmt.Errorf("cors: unknown suffix match mode %q", match)
	}

	defaults := opts.Defaults
	if defaults == nil {
		defaults = DefaultOrigins
	}

	p := &Policy{
		members: make(map[string]struct{}),
		suffix:  strings.TrimSpace(opts.TrustedSuffix),
		match:   match,
	}
	for _, origin := range defaults {
		p.add(origin)
	}
	for _, raw := range opts.Extra {
		for _, origin := range ParseOrigins(raw) {
			p.add(origin)
		}
	}
	return p, nil
}

// ParseOrigins splits a comma-separated origin list, trimming each entry and
// dropping empty ones.
func ParseOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (p *Policy) add(origin string) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return
	}
	p.origins = append(p.origins, origin)
	p.members[origin] = struct{}{}
}

// Origins returns a copy of the allow-list in construction order.
func (p *Policy) Origins() []string {
	return append([]string(nil), p.origins...)
}

// TrustedSuffix returns the configured suffix and how it is matched.
func (p *Policy) TrustedSuffix() (string, SuffixMatch) {
	return p.suffix, p.match
}

// Admit decides whether origin may receive the response. Requests without an
// Origin header (curl, server-to-server, same-origin) are always admitted.
func (p *Policy) Admit(origin string) Decision {
	if origin == "" {
		return Decision{Allowed: true, Reason: ReasonNoOrigin}
	}
	if _, ok := p.members[origin]; ok {
		return Decision{Origin: origin, Allowed: true, Reason: ReasonAllowList}
	}
	if p.trusted(origin) {
		return Decision{Origin: origin, Allowed: true, Reason: ReasonTrustedSuffix}
	}
	return Decision{Origin: origin, Allowed: false, Reason: ReasonNotAllowed}
}

// Allowed is Admit reduced to a bool, the shape rs/cors expects.
func (p *Policy) Allowed(origin string) bool {
	return p.Admit(origin).Allowed
}

func (p *Policy) trusted(origin string) bool {
	if p.suffix == "" {
		return false
	}
	if p.match == MatchContains {
		return strings.Contains(origin, p.suffix)
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return strings.HasSuffix(host, strings.ToLower(p.suffix))
}
