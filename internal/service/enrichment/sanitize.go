package enrichment

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"

	"github.com/octobees/dealflow-crm/internal/dto"
)

var emailPattern = regexp.MustCompile(`^[a-z0-9._%+\-']+@[a-z0-9.-]+\.[a-z]{2,}$`)

const (
	trackingPrefix = "utm_"
	linkedInDomain = "linkedin.com"
)

// contactFields holds the sanitized values stored for a new contact.
type contactFields struct {
	email    *string
	phone    *string
	linkedIn *string
	role     *string
}

// sanitizeContact cleans the optional fields of an incoming contact. Values
// that fail validation are dropped rather than rejecting the contact.
func sanitizeContact(c dto.EnrichedContact) contactFields {
	return contactFields{
		email:    cleanEmail(c.Email),
		phone:    trimmed(c.Phone),
		linkedIn: cleanLinkedIn(c.LinkedIn),
		role:     trimmed(c.Role),
	}
}

func cleanEmail(raw *string) *string {
	email := normalizeEmail(raw)
	if email == "" || !emailPattern.MatchString(email) {
		return nil
	}
	_, domain, _ := strings.Cut(email, "@")
	if ascii, err := idna.Lookup.ToASCII(domain); err != nil || ascii == "" {
		return nil
	}
	return &email
}

func cleanLinkedIn(raw *string) *string {
	value := trimmed(raw)
	if value == nil {
		return nil
	}
	link := *value
	if !strings.Contains(link, "://") {
		link = "https://" + link
	}
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return nil
	}
	host := strings.ToLower(strings.Trim(u.Hostname(), "."))
	if host != linkedInDomain && !strings.HasSuffix(host, "."+linkedInDomain) {
		return nil
	}
	u.Scheme = "https"
	u.Fragment = ""
	stripTracking(u)

	cleaned := u.String()
	return &cleaned
}

func stripTracking(u *url.URL) {
	query := u.Query()
	changed := false
	for key := range query {
		if strings.HasPrefix(strings.ToLower(key), trackingPrefix) {
			query.Del(key)
			changed = true
		}
	}
	if changed {
		u.RawQuery = query.Encode()
	}
}
