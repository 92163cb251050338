package acquiring

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	passwordField = "Password"
	tokenField    = "Token"
)

// Flatten converts a request struct into the generic field map that is both
// signed and sent on the wire. Numbers are kept as json.Number so that the
// signed text matches the transmitted text exactly.
func Flatten(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	fields := make(map[string]interface{})
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("flatten request: %w", err)
	}
	return fields, nil
}

// GenerateToken derives the request token: every top-level scalar value plus
// the terminal password, ordered by field name, concatenated and hashed with
// SHA-256. Nested objects, arrays and nulls do not take part.
func GenerateToken(fields map[string]interface{}, password string) string {
	values := make(map[string]string, len(fields)+1)
	for key, value := range fields {
		if s, ok := scalarString(value); ok {
			values[key] = s
		}
	}
	values[passwordField] = password

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(values[key])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// VerifyToken checks the Token field of an inbound message (e.g. a payment
// notification) against the token computed from its remaining fields.
func VerifyToken(fields map[string]interface{}, password string) bool {
	received, ok := fields[tokenField].(string)
	if !ok || received == "" {
		return false
	}

	unsigned := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		if key != tokenField {
			unsigned[key] = value
		}
	}

	expected := GenerateToken(unsigned, password)
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(received)), []byte(expected)) == 1
}

func scalarString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	case int:
		return fmt.Sprintf("%d", v), true
	case int64:
		return fmt.Sprintf("%d", v), true
	case float64:
		return formatFloat(v), true
	case map[string]interface{}, []interface{}:
		return "", false
	default:
		// Typed maps and slices coming from callers that skipped Flatten.
		raw, err := json.Marshal(v)
		if err != nil || len(raw) == 0 || raw[0] == '{' || raw[0] == '[' || string(raw) == "null" {
			return "", false
		}
		return strings.Trim(string(raw), `"`), true
	}
}

func formatFloat(f float64) string {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Sprintf("%v", f)
	}
	return string(raw)
}
