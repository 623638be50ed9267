package httpx

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// RedactedValue replaces sensitive header values in log output.
const RedactedValue = "[redacted]"

// InvalidHeaderError reports a header that cannot be put on the wire.
type InvalidHeaderError struct {
	Name   string
	Reason string
}

func (e *InvalidHeaderError) Error() string {
	return fmt.Sprintf("invalid header %q: %s", e.Name, e.Reason)
}

// ValidateField checks a single header name/value pair.
func ValidateField(name, value string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return &InvalidHeaderError{Name: name, Reason: "bad field name"}
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return &InvalidHeaderError{Name: name, Reason: "value contains characters not allowed in a header"}
	}
	return nil
}

// Validate checks every name/value in h. The first offending field is returned.
func Validate(h http.Header) error {
	for _, name := range sortedNames(h) {
		for _, v := range h[name] {
			if err := ValidateField(name, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// Redact returns "Name: value" lines sorted by name with the values of the
// given sensitive headers (case-insensitive) replaced.
func Redact(h http.Header, sensitive ...string) []string {
	hide := make(map[string]bool, len(sensitive))
	for _, s := range sensitive {
		hide[http.CanonicalHeaderKey(s)] = true
	}
	var out []string
	for _, name := range sortedNames(h) {
		for _, v := range h[name] {
			if hide[http.CanonicalHeaderKey(name)] {
				v = RedactedValue
			}
			out = append(out, name+": "+v)
		}
	}
	return out
}

// Without returns a copy of h minus the named headers (case-insensitive).
func Without(h http.Header, names ...string) http.Header {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[strings.ToLower(n)] = true
	}
	out := make(http.Header, len(h))
	for k, vs := range h {
		if drop[strings.ToLower(k)] {
			continue
		}
		out[k] = append([]string(nil), vs...)
	}
	return out
}

func sortedNames(h http.Header) []string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
