package policy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ReservedValuesPolicy denies requests whose string field equals one of
// values, ignoring case. field is a top-level key of the JSON request.
func ReservedValuesPolicy(name, field string, values ...string) Policy {
	lowered := make([]string, len(values))
	for i, v := range values {
		lowered[i] = strings.ToLower(v)
	}

	return Policy{
		Name:        name,
		Description: fmt.Sprintf("Rejects reserved values of %s", field),
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"builtin", "reserved"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: fmt.Sprintf(`package layerkit.builtin.%s

import rego.v1

reserved := %s

deny contains violation if {
	value := input.request[%s]
	lower(value) in reserved
	violation := {
		"message": sprintf("%%s '%%s' is reserved", [%s, value]),
		"field": %s,
	}
}
`, packageSegment(name), regoSet(lowered), quote(field), quote(field), quote(field)),
	}
}

// DisabledOperationsPolicy denies every request for the given operations.
func DisabledOperationsPolicy(name, reason string, operations ...string) Policy {
	return Policy{
		Name:        name,
		Description: fmt.Sprintf("Disables operations: %s", strings.Join(operations, ", ")),
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"builtin", "operations"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: fmt.Sprintf(`package layerkit.builtin.%s

import rego.v1

disabled := %s

deny contains msg if {
	input.operation in disabled
	msg := sprintf("operation %%s is disabled: %%s", [input.operation, %s])
}
`, packageSegment(name), regoSet(operations), quote(reason)),
	}
}

// packageSegment turns a policy name into a Rego package path segment.
func packageSegment(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 || (b.String()[0] >= '0' && b.String()[0] <= '9') {
		return "p_" + b.String()
	}
	return b.String()
}

func regoSet(values []string) string {
	if len(values) == 0 {
		return "set()"
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quote(v)
	}
	return "{" + strings.Join(quoted, ", ") + "}"
}

// quote renders s as a Rego string literal.
func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
