package functions

import (
	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/value"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// tagCheck reports whether the text of v satisfies a validator tag.
// Bytes that are not valid UTF-8 never do.
func tagCheck(tag string) func(value.Value) bool {
	return func(v value.Value) bool {
		s, ok := value.Text(v)
		if !ok || s == "" {
			return false
		}
		return validate.Var(s, tag) == nil
	}
}

// rawAddress accepts bytes holding a binary address of the given length
// before falling back to the textual check.
func rawAddress(n int, text func(value.Value) bool) func(value.Value) bool {
	return func(v value.Value) bool {
		if v.Kind() == cove.BytesKind && len(v.AsString()) == n {
			return true
		}
		return text(v)
	}
}

func isUUID(v value.Value) bool {
	s, ok := value.Text(v)
	if !ok {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// validators declares the string format checks.
func validators() []spec {
	checks := []struct {
		name  string
		base  string
		check func(value.Value) bool
	}{
		{"isEmail", "is_email", tagCheck("email")},
		{"isHostname", "is_hostname", tagCheck("hostname_rfc1123")},
		{"isIpv4", "is_ipv4", rawAddress(4, tagCheck("ipv4"))},
		{"isIpv6", "is_ipv6", rawAddress(16, tagCheck("ipv6"))},
		{"isUri", "is_uri", tagCheck("uri")},
		{"isUuid", "is_uuid", isUUID},
	}

	boolT := fixed(cove.Bool{})
	out := make([]spec, 0, len(checks))
	for _, c := range checks {
		out = append(out, spec{
			name:           c.name,
			base:           c.base,
			style:          Either,
			eval:           predicate(c.check),
			result:         boolT,
			sigs:           each([]cove.Kind{tS, tY}),
			fallback:       1,
			fallbackResult: boolT,
		})
	}
	return out
}
