package enrichment

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/octobees/dealflow-crm/internal/dto"
	"github.com/octobees/dealflow-crm/internal/entity"
)

// DedupeContacts flags incoming contacts that already exist, matching email
// case-insensitively or phone exactly (raw or E.164). When companyID is set
// only that company's contacts are considered.
func (s *Service) DedupeContacts(ctx context.Context, incoming []dto.EnrichedContact, companyID *uuid.UUID) ([]dto.ContactWithDedupe, error) {
	result := make([]dto.ContactWithDedupe, 0, len(incoming))
	if len(incoming) == 0 {
		return result, nil
	}

	var emails, phones []string
	seenEmail := map[string]struct{}{}
	seenPhone := map[string]struct{}{}
	for _, c := range incoming {
		if email := normalizeEmail(c.Email); email != "" {
			if _, ok := seenEmail[email]; !ok {
				seenEmail[email] = struct{}{}
				emails = append(emails, email)
			}
		}
		for _, phone := range s.phoneKeys(c.Phone) {
			if _, ok := seenPhone[phone]; !ok {
				seenPhone[phone] = struct{}{}
				phones = append(phones, phone)
			}
		}
	}

	// Two independent lookups instead of one OR filter built from contact data.
	var byEmail, byPhone []entity.Contact
	g, gctx := errgroup.WithContext(ctx)
	if len(emails) > 0 {
		g.Go(func() error {
			found, err := s.contacts.FindByEmails(gctx, emails, companyID)
			if err != nil {
				return eris.Wrap(err, "enrichment: find contacts by email")
			}
			byEmail = found
			return nil
		})
	}
	if len(phones) > 0 {
		g.Go(func() error {
			found, err := s.contacts.FindByPhones(gctx, phones, companyID)
			if err != nil {
				return eris.Wrap(err, "enrichment: find contacts by phone")
			}
			byPhone = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	emailIndex := map[string]entity.Contact{}
	phoneIndex := map[string]entity.Contact{}
	seen := map[uuid.UUID]struct{}{}
	for _, existing := range append(byEmail, byPhone...) {
		if _, ok := seen[existing.ID]; ok {
			continue
		}
		seen[existing.ID] = struct{}{}
		if email := normalizeEmail(existing.Email); email != "" {
			if _, ok := emailIndex[email]; !ok {
				emailIndex[email] = existing
			}
		}
		for _, phone := range s.phoneKeys(existing.Phone) {
			if _, ok := phoneIndex[phone]; !ok {
				phoneIndex[phone] = existing
			}
		}
	}

	for _, c := range incoming {
		entry := dto.ContactWithDedupe{EnrichedContact: c}
		match, ok := emailIndex[normalizeEmail(c.Email)]
		if !ok {
			for _, phone := range s.phoneKeys(c.Phone) {
				if match, ok = phoneIndex[phone]; ok {
					break
				}
			}
		}
		if ok {
			id := match.ID.String()
			name := match.DisplayName()
			entry.IsDuplicate = true
			entry.ExistingContactID = &id
			entry.ExistingContactName = &name
		}
		entry.Selected = !entry.IsDuplicate
		result = append(result, entry)
	}
	return result, nil
}

// phoneKeys returns the trimmed phone and, when it parses, its E.164 form.
func (s *Service) phoneKeys(phone *string) []string {
	if phone == nil {
		return nil
	}
	raw := strings.TrimSpace(*phone)
	if raw == "" {
		return nil
	}
	keys := []string{raw}
	if e164, ok := NormalizePhone(raw, s.phoneRegion); ok && e164 != raw {
		keys = append(keys, e164)
	}
	return keys
}

func normalizeEmail(email *string) string {
	if email == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*email))
}
