package cloak

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaskType represents a known data format with partial masking rules.
type MaskType string

const (
	MaskAuto  MaskType = ""      // chosen from the entity type
	MaskSSN   MaskType = "ssn"   // 123-45-6789 -> ***-**-6789
	MaskEmail MaskType = "email" // alice@example.com -> a***@example.com
	MaskPhone MaskType = "phone" // (555) 123-4567 -> (***) ***-4567
	MaskCard  MaskType = "card"  // 4111111111111111 -> ************1111
	MaskIP    MaskType = "ip"    // 192.168.1.100 -> 192.168.xxx.xxx
	MaskUUID  MaskType = "uuid"  // 550e8400-e29b-41d4-a716-446655440000 -> 550e8400-****-****-****-************
	MaskIBAN  MaskType = "iban"  // GB82WEST12345698765432 -> GB82************5432
	MaskName  MaskType = "name"  // John Smith -> J*** S****
)

// entityMaskTypes maps detector entity types to partial mask formats.
var entityMaskTypes = map[string]MaskType{
	"US_SSN":        MaskSSN,
	"SSN":           MaskSSN,
	"EMAIL_ADDRESS": MaskEmail,
	"EMAIL":         MaskEmail,
	"PHONE_NUMBER":  MaskPhone,
	"PHONE":         MaskPhone,
	"CREDIT_CARD":   MaskCard,
	"IP_ADDRESS":    MaskIP,
	"UUID":          MaskUUID,
	"IBAN_CODE":     MaskIBAN,
	"IBAN":          MaskIBAN,
	"PERSON":        MaskName,
	"NAME":          MaskName,
}

// Masker applies content-aware partial masking.
type Masker interface {
	// Mask applies masking to the value.
	Mask(value string) string
}

// asterisks returns one '*' per codepoint of value.
func asterisks(value string) string {
	return strings.Repeat("*", utf8.RuneCountInString(value))
}

// ssnMasker masks SSN format: 123-45-6789 -> ***-**-6789
type ssnMasker struct{}

// SSNMasker returns a masker for Social Security Numbers.
// Preserves the last 4 digits, masks everything else.
func SSNMasker() Masker {
	return &ssnMasker{}
}

func (m *ssnMasker) Mask(value string) string {
	digits := extractDigits(value)
	if len(digits) < 4 {
		return asterisks(value)
	}
	return "***-**-" + digits[len(digits)-4:]
}

// emailMasker masks email format: alice@example.com -> a***@example.com
type emailMasker struct{}

// EmailMasker returns a masker for email addresses.
// Preserves first character of local part and full domain.
func EmailMasker() Masker {
	return &emailMasker{}
}

func (m *emailMasker) Mask(value string) string {
	atIdx := strings.LastIndex(value, "@")
	if atIdx < 1 {
		return asterisks(value)
	}

	first, _ := utf8.DecodeRuneInString(value)
	return string(first) + "***" + value[atIdx:]
}

// phoneMasker masks phone format: (555) 123-4567 -> (***) ***-4567
type phoneMasker struct{}

// PhoneMasker returns a masker for phone numbers.
// Preserves the last 4 digits, masks everything else.
func PhoneMasker() Masker {
	return &phoneMasker{}
}

func (m *phoneMasker) Mask(value string) string {
	digits := extractDigits(value)
	if len(digits) < 4 {
		return asterisks(value)
	}

	last4 := digits[len(digits)-4:]
	switch {
	case strings.HasPrefix(value, "(") && len(digits) >= 10:
		return "(***) ***-" + last4
	case len(digits) >= 10:
		return "***-***-" + last4
	default:
		return "***-" + last4
	}
}

// cardMasker masks card format: 4111111111111111 -> ************1111
type cardMasker struct{}

// CardMasker returns a masker for credit card numbers.
// Preserves the last 4 digits, masks everything else.
func CardMasker() Masker {
	return &cardMasker{}
}

func (m *cardMasker) Mask(value string) string {
	digits := extractDigits(value)
	if len(digits) < 4 {
		return asterisks(value)
	}

	last4 := digits[len(digits)-4:]
	switch {
	case strings.Contains(value, " "):
		return maskGroups(len(digits), last4, " ")
	case strings.Contains(value, "-"):
		return maskGroups(len(digits), last4, "-")
	default:
		return strings.Repeat("*", len(digits)-4) + last4
	}
}

// extractDigits returns only the digit characters from a string.
func extractDigits(s string) string {
	var digits strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	return digits.String()
}

// maskGroups formats a masked card in groups of four: ****-****-****-1234
func maskGroups(totalDigits int, last4, sep string) string {
	groups := (totalDigits - 4 + 3) / 4
	masked := make([]string, groups, groups+1)
	for i := range masked {
		masked[i] = "****"
	}
	return strings.Join(append(masked, last4), sep)
}

// ipMasker masks IP addresses.
// IPv4: 192.168.1.100 -> 192.168.xxx.xxx
// IPv6: 2001:0db8:85a3:0000:0000:8a2e:0370:7334 -> 2001:0db8:85a3:0000:xxxx:xxxx:xxxx:xxxx
type ipMasker struct{}

// IPMasker returns a masker for IP addresses.
// IPv4 keeps the first two octets, IPv6 keeps the 64-bit network prefix.
func IPMasker() Masker {
	return &ipMasker{}
}

func (m *ipMasker) Mask(value string) string {
	if parts := strings.Split(value, "."); len(parts) == 4 {
		return parts[0] + "." + parts[1] + ".xxx.xxx"
	}
	if strings.Contains(value, ":") {
		return maskIPv6(value)
	}
	return asterisks(value)
}

// maskIPv6 masks an IPv6 address, preserving the network prefix.
func maskIPv6(value string) string {
	parts := strings.Split(expandIPv6(value), ":")
	if len(parts) != 8 {
		return asterisks(value)
	}
	return strings.Join(parts[:4], ":") + ":xxxx:xxxx:xxxx:xxxx"
}

// expandIPv6 expands :: notation to full 8-group form.
func expandIPv6(value string) string {
	if !strings.Contains(value, "::") {
		return value
	}

	halves := strings.Split(value, "::")
	if len(halves) != 2 {
		return value
	}

	var left, right []string
	if halves[0] != "" {
		left = strings.Split(halves[0], ":")
	}
	if halves[1] != "" {
		right = strings.Split(halves[1], ":")
	}

	missing := 8 - len(left) - len(right)
	if missing < 0 {
		return value
	}

	all := make([]string, 0, 8)
	all = append(all, left...)
	for i := 0; i < missing; i++ {
		all = append(all, "0000")
	}
	all = append(all, right...)
	return strings.Join(all, ":")
}

// uuidMasker masks UUIDs: 550e8400-e29b-41d4-a716-446655440000 -> 550e8400-****-****-****-************
type uuidMasker struct{}

// UUIDMasker returns a masker for UUIDs.
// Preserves first segment, masks the rest.
func UUIDMasker() Masker {
	return &uuidMasker{}
}

func (m *uuidMasker) Mask(value string) string {
	parts := strings.Split(value, "-")
	if len(parts) != 5 {
		return asterisks(value)
	}
	return parts[0] + "-****-****-****-************"
}

// ibanMasker masks IBANs: GB82WEST12345698765432 -> GB82************5432
type ibanMasker struct{}

// IBANMasker returns a masker for IBANs.
// Preserves country code + check digits (first 4) and last 4 chars.
func IBANMasker() Masker {
	return &ibanMasker{}
}

func (m *ibanMasker) Mask(value string) string {
	if len(value) <= 8 {
		return asterisks(value)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// nameMasker masks names: John Smith -> J*** S****
type nameMasker struct{}

// NameMasker returns a masker for personal names.
// Preserves first letter of each word, masks the rest.
func NameMasker() Masker {
	return &nameMasker{}
}

func (m *nameMasker) Mask(value string) string {
	words := strings.Fields(value)
	masked := make([]string, len(words))
	for i, word := range words {
		runes := []rune(word)
		masked[i] = string(runes[0]) + strings.Repeat("*", len(runes)-1)
	}
	return strings.Join(masked, " ")
}

// maskers is the read-only registry consulted by the Partial strategy.
var maskers = builtinMaskers()

// builtinMaskers returns the default masker registry.
func builtinMaskers() map[MaskType]Masker {
	return map[MaskType]Masker{
		MaskSSN:   SSNMasker(),
		MaskEmail: EmailMasker(),
		MaskPhone: PhoneMasker(),
		MaskCard:  CardMasker(),
		MaskIP:    IPMasker(),
		MaskUUID:  UUIDMasker(),
		MaskIBAN:  IBANMasker(),
		MaskName:  NameMasker(),
	}
}

// partialMask masks value with the format mt, resolving MaskAuto from the
// entity type. Unknown entity types are fully masked.
func partialMask(value, entityType string, mt MaskType) string {
	if mt == MaskAuto {
		var ok bool
		if mt, ok = entityMaskTypes[entityType]; !ok {
			return asterisks(value)
		}
	}
	m, ok := maskers[mt]
	if !ok {
		return asterisks(value)
	}
	return m.Mask(value)
}
