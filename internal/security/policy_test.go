package security

import (
	"testing"

	"github.com/BotCoder254/URLBriefr/internal/models"
	"github.com/stretchr/testify/assert"
)

func allow(addr string) models.IPRestriction {
	return models.IPRestriction{RestrictionType: models.RestrictionAllow, Address: addr}
}

func block(addr string) models.IPRestriction {
	return models.IPRestriction{RestrictionType: models.RestrictionBlock, Address: addr}
}

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		name         string
		restrictions []models.IPRestriction
		ip           string
		want         bool
	}{
		{"no restrictions permits any IP", nil, "203.0.113.7", true},
		{"allow list permits member", []models.IPRestriction{allow("10.0.0.0/8")}, "10.1.2.3", true},
		{"allow list denies non-member", []models.IPRestriction{allow("10.0.0.0/8")}, "192.168.1.1", false},
		{"allow list exact match", []models.IPRestriction{allow("203.0.113.7")}, "203.0.113.7", true},
		{"allow list exact mismatch", []models.IPRestriction{allow("203.0.113.7")}, "203.0.113.8", false},
		{"block list denies exact address", []models.IPRestriction{block("1.2.3.4")}, "1.2.3.4", false},
		{"block list permits all others", []models.IPRestriction{block("1.2.3.4")}, "1.2.3.5", true},
		{"block list CIDR containment", []models.IPRestriction{block("192.168.0.0/16")}, "192.168.44.1", false},
		{"allow wins over block presence", []models.IPRestriction{block("10.1.2.3"), allow("10.0.0.0/8")}, "10.1.2.3", true},
		{"malformed CIDR never matches", []models.IPRestriction{block("not-an-ip/24")}, "10.1.2.3", true},
		{"malformed allow entry denies by default", []models.IPRestriction{allow("not-an-ip/24")}, "10.1.2.3", false},
		{"unparseable client IP cannot match CIDR", []models.IPRestriction{allow("10.0.0.0/8")}, "garbage", false},
		{"empty entry never matches", []models.IPRestriction{block("")}, "10.1.2.3", true},
		{"ipv6 CIDR containment", []models.IPRestriction{allow("2001:db8::/32")}, "2001:db8::1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowed(tt.restrictions, tt.ip))
		})
	}
}

func TestMalformedEntriesDoNotPanic(t *testing.T) {
	entries := []string{"/", "//", "1.2.3.4/", "/24", "::/xyz", "12.12.12.12/99"}
	for _, e := range entries {
		assert.NotPanics(t, func() {
			IsAllowed([]models.IPRestriction{block(e)}, "10.0.0.1")
		})
	}
}
