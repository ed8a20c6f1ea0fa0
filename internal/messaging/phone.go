package messaging

import "strings"

const whatsappPrefix = "whatsapp:"

// NormalizeE164 strips any whatsapp: prefix and ensures the value begins
// with + followed by digits only.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(strings.TrimPrefix(value, whatsappPrefix))
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// WhatsAppAddress renders a number in Twilio's whatsapp:+E164 form.
func WhatsAppAddress(number string) string {
	normalized := NormalizeE164(number)
	if normalized == "" {
		return ""
	}
	return whatsappPrefix + normalized
}

func sanitizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
