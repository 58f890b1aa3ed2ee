package game

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// signPayload canonicalizes the request fields and computes the integrity
// signature the external service expects: field names sorted ascending,
// joined as key=value with '&', nested structures JSON-encoded, the shared
// secret appended, and the whole string digested with MD5 (hex).
//
// The canonicalization must be reproduced bit-for-bit or the service rejects
// the request with a sign error.
func signPayload(fields map[string]any, secret string) string {
	return md5Hex(canonicalString(fields) + secret)
}

func canonicalString(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fieldValue(fields[k]))
	}
	return strings.Join(parts, "&")
}

func fieldValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// Never exponent form: millisecond timestamps and other large
		// numbers must canonicalize digit for digit.
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool, int, int8, int16, int32, int64, uint, uint32, uint64:
		return fmt.Sprint(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
