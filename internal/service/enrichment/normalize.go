package enrichment

import (
	"net"
	"net/url"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

const defaultPhoneRegion = "ES"

// NormalizeTaxID upper-cases and trims a tax identifier.
func NormalizeTaxID(taxID string) string {
	return strings.ToUpper(strings.TrimSpace(taxID))
}

// RegistrableDomain extracts the registrable domain (eTLD+1) of a website.
// It returns false when the value cannot be read as a host name.
func RegistrableDomain(website string) (string, bool) {
	raw := strings.TrimSpace(website)
	if raw == "" {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.TrimSuffix(strings.ToLower(parsed.Hostname()), ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" || !strings.Contains(host, ".") || net.ParseIP(host) != nil {
		return "", false
	}
	if _, err := idna.Lookup.ToASCII(host); err != nil {
		return "", false
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, true
	}
	return domain, true
}

// NormalizePhone returns the E.164 form of phone, or false when it does not
// parse as a valid number for region.
func NormalizePhone(phone, region string) (string, bool) {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return "", false
	}
	if region == "" {
		region = defaultPhoneRegion
	}
	num, err := phonenumbers.Parse(trimmed, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}
