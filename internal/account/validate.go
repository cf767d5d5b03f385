package account

import (
	"fmt"
	"net/mail"
	"strings"
)

const (
	minPasswordLen = 4
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

type fieldErrors map[string][]string

func (f fieldErrors) add(field, rule string) {
	f[field] = append(f[field], fmt.Sprintf("%s validation failed on %s", rule, field))
}

func (f fieldErrors) required(field, val string) bool {
	if strings.TrimSpace(val) == "" {
		f.add(field, "required")
		return false
	}
	return true
}

func (f fieldErrors) email(field, val string) {
	if !f.required(field, val) {
		return
	}
	if !validEmail(val) {
		f.add(field, "email")
	}
}

func (f fieldErrors) password(field, val string) {
	if !f.required(field, val) {
		return
	}
	if len(val) < minPasswordLen {
		f.add(field, "min")
	}
	if len(val) > maxPasswordLen {
		f.add(field, "max")
	}
}

// validEmail accepts a bare address only, not "Name <addr>".
func validEmail(val string) bool {
	addr, err := mail.ParseAddress(val)
	return err == nil && addr.Address == val
}

// oldInput keeps submitted values for the form refill. Passwords are never
// echoed back.
func oldInput(kv ...string) map[string]string {
	out := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}
