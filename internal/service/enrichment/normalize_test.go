package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistrableDomain(t *testing.T) {
	cases := map[string]struct {
		input string
		want  string
		ok    bool
	}{
		"plain host":     {input: "acme.es", want: "acme.es", ok: true},
		"www and path":   {input: "https://www.acme.es/contacto?x=1", want: "acme.es", ok: true},
		"subdomain":      {input: "http://shop.acme.es", want: "acme.es", ok: true},
		"multi part tld": {input: "https://blog.acme.co.uk/", want: "acme.co.uk", ok: true},
		"upper case":     {input: "HTTPS://WWW.ACME.ES", want: "acme.es", ok: true},
		"empty":          {input: "   ", ok: false},
		"no dot":         {input: "localhost", ok: false},
		"spaces in host": {input: "not a url", ok: false},
		"ip address":     {input: "http://192.168.1.10/admin", ok: false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := RegistrableDomain(tc.input)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	got, ok := NormalizePhone("600 11 12 22", "ES")
	assert.True(t, ok)
	assert.Equal(t, "+34600111222", got)

	got, ok = NormalizePhone("+34 600-111-222", "")
	assert.True(t, ok)
	assert.Equal(t, "+34600111222", got)

	_, ok = NormalizePhone("12", "ES")
	assert.False(t, ok)

	_, ok = NormalizePhone("", "ES")
	assert.False(t, ok)
}

func TestNormalizeTaxID(t *testing.T) {
	assert.Equal(t, "B12345678", NormalizeTaxID("  b12345678 "))
}
