package auth

import "strings"

// MatchAllowedEmail decides whether a candidate address is authorized
// to register, given the stored whitelist entries.
//
// Matching order: an exact literal match wins first; otherwise, when
// the candidate has exactly one "@", its domain is tested against every
// entry beginning with "@". A domain d matches whitelist domain w when
// d == w or d ends with "."+w, so whitelisting hospital.org covers
// dept.hospital.org but never nothospital.org.
func MatchAllowedEmail(candidate string, entries []AllowedEmail) bool {
	candidate = strings.TrimSpace(strings.ToLower(candidate))
	if candidate == "" {
		return false
	}
	for _, e := range entries {
		if strings.ToLower(e.Email) == candidate {
			return true
		}
	}
	if strings.Count(candidate, "@") != 1 {
		return false
	}
	domain := candidate[strings.IndexByte(candidate, '@')+1:]
	if domain == "" {
		return false
	}
	for _, e := range entries {
		entry := strings.ToLower(strings.TrimSpace(e.Email))
		if !strings.HasPrefix(entry, "@") {
			continue
		}
		allowed := entry[1:]
		if allowed == "" {
			continue
		}
		if domain == allowed || strings.HasSuffix(domain, "."+allowed) {
			return true
		}
	}
	return false
}
