package masking

import "strings"

const maskToken = "****"

// MaskSecret hides a credential, keeping its key prefix (sk_live_, whsec_)
// and the last four characters so operators can tell keys apart.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, rest := splitPrefix(trimmed)
	if len(rest) <= 4 {
		return prefix + maskToken
	}
	return prefix + maskToken + rest[len(rest)-4:]
}

// MaskEmail keeps the first letter of the local part and the domain.
func MaskEmail(value string) string {
	trimmed := strings.TrimSpace(value)
	at := strings.LastIndex(trimmed, "@")
	if at <= 0 {
		return MaskSecret(trimmed)
	}
	return trimmed[:1] + maskToken + trimmed[at:]
}

// MaskMetadata masks every string value of a metadata map for logging.
func MaskMetadata(input map[string]string) map[string]string {
	if len(input) == 0 {
		return nil
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		if strings.Contains(strings.ToLower(key), "email") {
			out[key] = MaskEmail(value)
			continue
		}
		out[key] = value
	}
	return out
}

// splitPrefix separates a provider key prefix such as "sk_test_" from the secret part.
func splitPrefix(value string) (string, string) {
	idx := strings.LastIndex(value, "_")
	if idx == -1 || idx == len(value)-1 || idx > 12 {
		return "", value
	}
	return value[:idx+1], value[idx+1:]
}
