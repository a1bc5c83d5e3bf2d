package fetch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ParseHeaderJSON parses a flat JSON object of the form
// {"Key": "Value", ...} into an http.Header. An empty or
// whitespace-only string means no headers. Values must be strings;
// names must be RFC 7230 tokens. Anything else is ErrInvalidHeaders.
func ParseHeaderJSON(s string) (http.Header, error) {
	if strings.TrimSpace(s) == "" {
		return http.Header{}, nil
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("%w: parse headers JSON: %v", ErrInvalidHeaders, err)
	}

	header := make(http.Header, len(raw))
	for name, v := range raw {
		value, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: header value for %q must be a string", ErrInvalidHeaders, name)
		}
		if !validHeaderName(name) {
			return nil, fmt.Errorf("%w: invalid header name %q", ErrInvalidHeaders, name)
		}
		if !validHeaderValue(value) {
			return nil, fmt.Errorf("%w: invalid header value for %q", ErrInvalidHeaders, name)
		}
		header.Set(name, value)
	}
	return header, nil
}

// validHeaderName reports whether name is a non-empty RFC 7230 token.
func validHeaderName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isTokenChar(name[i]) {
			return false
		}
	}
	return true
}

func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

// validHeaderValue rejects control bytes so a value can never smuggle
// a CRLF into the wire format. Horizontal tab is the one control byte
// the field grammar permits.
func validHeaderValue(value string) bool {
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == '\t' {
			continue
		}
		if c < 0x20 || c == 0x7f {
			return false
		}
	}
	return true
}
