package chain

// key.go normalizes the image URLs that key refinement chains. The same
// logical image is referenced under at least two URL shapes across a chain:
// a locally cached copy and the generation service's hosted copy, and losing
// the mapping silently resets the background. Key normalization plus the
// tiered matching in the manager keep the chain findable under either shape.

import (
	"net/url"
	"path"
	"strings"
)

// CanonicalKey reduces a raw image URL to the canonical chain key: scheme
// and query dropped, host lowercased, path kept verbatim. Non-URL inputs
// (local paths) are returned trimmed.
func CanonicalKey(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.ToLower(u.Host) + u.Path
}

// StripQuery removes the query string and fragment from a URL, leaving the
// rest untouched. Presigned URLs for the same object differ only in query.
func StripQuery(raw string) string {
	if idx := strings.IndexAny(raw, "?#"); idx >= 0 {
		return raw[:idx]
	}
	return raw
}

// PathID extracts a stable identifier token from a URL or filename: the
// longest alphanumeric run (at least 8 characters) in the final path segment,
// extension dropped. A locally cached "refined-1712345678-9f2ab31c04.png" and
// a hosted ".../9f2ab31c04.png" share the same PathID.
func PathID(raw string) string {
	base := path.Base(StripQuery(raw))
	if dot := strings.LastIndex(base, "."); dot > 0 {
		base = base[:dot]
	}

	longest := ""
	current := strings.Builder{}
	// Ties keep the later token: generated filenames put the distinguishing
	// hash last ("refined-1712345678-9f2ab31c04").
	flush := func() {
		if current.Len() >= len(longest) && current.Len() > 0 {
			longest = current.String()
		}
		current.Reset()
	}
	for _, r := range base {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	if len(longest) < 8 {
		return ""
	}
	return strings.ToLower(longest)
}

// SamePathID reports whether two URLs carry the same identifier token.
// Empty tokens never match.
func SamePathID(a, b string) bool {
	pa, pb := PathID(a), PathID(b)
	return pa != "" && pa == pb
}
