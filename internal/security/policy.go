package security

import (
	"net/netip"
	"strings"

	"github.com/BotCoder254/URLBriefr/internal/models"
)

// IsAllowed evaluates the link's IP restrictions against the client IP.
//
// A non-empty allow list is exclusionary: the IP must match at least one
// allow entry. With only block entries, the IP must match none of them.
// No restrictions at all permits everyone. Malformed entries never match
// and never panic.
func IsAllowed(restrictions []models.IPRestriction, clientIP string) bool {
	var hasAllow bool
	for _, r := range restrictions {
		if r.RestrictionType == models.RestrictionAllow {
			hasAllow = true
			break
		}
	}

	if hasAllow {
		for _, r := range restrictions {
			if r.RestrictionType == models.RestrictionAllow && matches(r.Address, clientIP) {
				return true
			}
		}
		return false
	}

	for _, r := range restrictions {
		if r.RestrictionType == models.RestrictionBlock && matches(r.Address, clientIP) {
			return false
		}
	}
	return true
}

// matches tests a single restriction entry against the client IP. Entries
// containing a slash are parsed as CIDR and tested by containment; everything
// else is exact string equality.
func matches(entry, clientIP string) bool {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return false
	}

	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return false
		}
		addr, err := netip.ParseAddr(clientIP)
		if err != nil {
			return false
		}
		return prefix.Contains(addr.Unmap())
	}

	return entry == clientIP
}
