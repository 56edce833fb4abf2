package cloak

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// maxSurrogateDraws bounds redraws when a surrogate collides with its original.
const maxSurrogateDraws = 8

var (
	surrogateEpoch = time.Date(1950, time.January, 1, 0, 0, 0, 0, time.UTC)
	surrogateDays  = int(time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC).Sub(surrogateEpoch).Hours() / 24)
)

// surrogateFunc draws a fake value shaped like original.
type surrogateFunc func(r *rand.Rand, original string) string

// surrogateFuncs maps canonical entity types to generators.
var surrogateFuncs = map[string]surrogateFunc{
	"PERSON":        surrogatePerson,
	"EMAIL_ADDRESS": surrogateEmail,
	"PHONE_NUMBER":  surrogatePhone,
	"DATE_TIME":     surrogateDate,
	"LOCATION":      surrogateCity,
	"US_SSN":        surrogateSSN,
	"CREDIT_CARD":   surrogateCard,
	"IP_ADDRESS":    surrogateIP,
	"URL":           surrogateURL,
	"ORGANIZATION":  surrogateOrganization,
}

// surrogateAliases maps alternative detector labels to canonical entity types.
var surrogateAliases = map[string]string{
	"GPE":   "LOCATION",
	"CITY":  "LOCATION",
	"EMAIL": "EMAIL_ADDRESS",
	"PHONE": "PHONE_NUMBER",
	"DATE":  "DATE_TIME",
	"SSN":   "US_SSN",
	"ORG":   "ORGANIZATION",
}

// SurrogateGenerator produces deterministic, type-plausible fake values.
//
// The same (original, entity type, seed) always yields the same surrogate,
// in any process. Each call derives a 64-bit key from the original text and
// the seed and drives a generator scoped to that call, so a
// SurrogateGenerator is safe for concurrent use.
type SurrogateGenerator struct {
	seed string
}

// NewSurrogateGenerator returns a generator bound to seed.
func NewSurrogateGenerator(seed string) *SurrogateGenerator {
	return &SurrogateGenerator{seed: seed}
}

// Supports reports whether the generator has data for entityType.
func (g *SurrogateGenerator) Supports(entityType string) bool {
	_, ok := surrogateFuncs[canonicalEntity(entityType)]
	return ok
}

// Generate returns a surrogate for original. It returns ErrUnsupportedEntity
// when the entity type has no generator.
func (g *SurrogateGenerator) Generate(original, entityType string) (string, error) {
	return g.GenerateWithHint(original, entityType, "")
}

// GenerateWithHint is like Generate but fills hint when it is non-empty,
// regardless of entity type. In a hint '#' is a digit, '?' a lowercase
// letter and '^' an uppercase letter; other characters are copied.
func (g *SurrogateGenerator) GenerateWithHint(original, entityType, hint string) (string, error) {
	var fn surrogateFunc
	if hint != "" {
		fn = func(r *rand.Rand, _ string) string { return fillPattern(r, hint) }
	} else {
		var ok bool
		if fn, ok = surrogateFuncs[canonicalEntity(entityType)]; !ok {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedEntity, entityType)
		}
	}

	r := g.rand(original)
	for range maxSurrogateDraws {
		if v := fn(r, original); v != original {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: no surrogate distinct from original after %d draws", ErrStrategy, maxSurrogateDraws)
}

// rand returns a generator seeded from original and the policy seed.
func (g *SurrogateGenerator) rand(original string) *rand.Rand {
	d := xxhash.New()
	_, _ = d.WriteString(original)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(g.seed)
	key := d.Sum64()
	return rand.New(rand.NewPCG(key, key^0x9e3779b97f4a7c15))
}

func canonicalEntity(entityType string) string {
	if alias, ok := surrogateAliases[entityType]; ok {
		return alias
	}
	return entityType
}

func pick(r *rand.Rand, table []string) string {
	return table[r.IntN(len(table))]
}

// fillPattern expands '#', '?' and '^' placeholders.
func fillPattern(r *rand.Rand, pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern))
	for _, c := range pattern {
		switch c {
		case '#':
			b.WriteByte(byte('0' + r.IntN(10)))
		case '?':
			b.WriteByte(byte('a' + r.IntN(26)))
		case '^':
			b.WriteByte(byte('A' + r.IntN(26)))
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// redrawDigits replaces every ASCII digit of original, keeping punctuation.
// The first digit is never zero. It reports false when original has fewer
// than minDigits digits.
func redrawDigits(r *rand.Rand, original string, minDigits int) ([]byte, []int, bool) {
	out := []byte(original)
	var positions []int
	for i, c := range out {
		if c >= '0' && c <= '9' {
			positions = append(positions, i)
		}
	}
	if len(positions) < minDigits {
		return nil, nil, false
	}
	for n, i := range positions {
		if n == 0 {
			out[i] = byte('1' + r.IntN(9))
			continue
		}
		out[i] = byte('0' + r.IntN(10))
	}
	return out, positions, true
}

func surrogatePerson(r *rand.Rand, original string) string {
	words := len(strings.Fields(original))
	if words < 2 {
		if words == 1 {
			return pick(r, firstNames)
		}
		words = 2
	}
	parts := make([]string, 0, words)
	for range words - 1 {
		parts = append(parts, pick(r, firstNames))
	}
	return strings.Join(append(parts, pick(r, lastNames)), " ")
}

func surrogateEmail(r *rand.Rand, _ string) string {
	first := strings.ToLower(pick(r, firstNames))
	last := strings.ToLower(pick(r, lastNames))
	return first + "." + last + "@" + pick(r, emailDomains)
}

func surrogatePhone(r *rand.Rand, original string) string {
	if out, _, ok := redrawDigits(r, original, 7); ok {
		return string(out)
	}
	return fillPattern(r, "(###) 555-01##")
}

func surrogateSSN(r *rand.Rand, original string) string {
	out, _, ok := redrawDigits(r, original, 9)
	if !ok {
		out = []byte(fillPattern(r, "###-##-####"))
	}
	// 9xx and 666 area numbers are never issued.
	if out[0] == '9' || strings.HasPrefix(string(out), "666") {
		out[0] = byte('1' + r.IntN(8))
	}
	return string(out)
}

func surrogateCard(r *rand.Rand, original string) string {
	out, positions, ok := redrawDigits(r, original, 12)
	if !ok {
		return surrogateCard(r, fillPattern(r, "4###-####-####-####"))
	}
	payload := make([]int, 0, len(positions)-1)
	for _, i := range positions[:len(positions)-1] {
		payload = append(payload, int(out[i]-'0'))
	}
	out[positions[len(positions)-1]] = byte('0' + luhnCheckDigit(payload))
	return string(out)
}

// luhnCheckDigit returns the digit that makes payload+digit pass the Luhn check.
func luhnCheckDigit(payload []int) int {
	sum := 0
	double := true
	for i := len(payload) - 1; i >= 0; i-- {
		d := payload[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

func surrogateDate(r *rand.Rand, original string) string {
	layout := defaultDateLayout
	for _, l := range dateLayouts {
		if _, err := time.Parse(l, strings.TrimSpace(original)); err == nil {
			layout = l
			break
		}
	}
	t := surrogateEpoch.AddDate(0, 0, r.IntN(surrogateDays+1)).
		Add(time.Duration(r.IntN(24*60*60)) * time.Second)
	return t.Format(layout)
}

func surrogateCity(r *rand.Rand, _ string) string {
	return pick(r, cities)
}

func surrogateIP(r *rand.Rand, original string) string {
	if strings.Contains(original, ":") {
		return fmt.Sprintf("2001:db8:%x:%x::%x", r.IntN(0x10000), r.IntN(0x10000), 1+r.IntN(0xfffe))
	}
	return fmt.Sprintf("%s%d", pick(r, ipv4DocumentationNets), 1+r.IntN(254))
}

func surrogateURL(r *rand.Rand, _ string) string {
	return "https://" + pick(r, urlHosts) + "/" + pick(r, urlPaths)
}

func surrogateOrganization(r *rand.Rand, _ string) string {
	return pick(r, organizationNames) + " " + pick(r, organizationSuffixes)
}
