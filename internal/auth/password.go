package auth

import (
	"strings"
)

const MinPasswordLength = 8

// commonPasswords is a short denylist of passwords seen constantly in breach
// corpora. Checked lowercase.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"12345678":    {},
	"123456789":   {},
	"1234567890":  {},
	"qwerty123":   {},
	"qwertyuiop":  {},
	"iloveyou":    {},
	"sunshine":    {},
	"princess":    {},
	"football":    {},
	"baseball":    {},
	"superman":    {},
	"trustno1":    {},
	"welcome1":    {},
	"admin123":    {},
	"letmein1":    {},
	"dragon123":   {},
	"monkey123":   {},
	"11111111":    {},
	"00000000":    {},
	"abcd1234":    {},
	"passw0rd":    {},
}

// ValidatePassword applies the password strength policy and returns every
// violation message. An empty slice means the password is acceptable.
// email and fullName are used for the similarity check.
func ValidatePassword(password, email, fullName string) []string {
	var violations []string

	if len(password) < MinPasswordLength {
		violations = append(violations,
			"This password is too short. It must contain at least 8 characters.")
	}

	if password != "" && isEntirelyNumeric(password) {
		violations = append(violations, "This password is entirely numeric.")
	}

	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		violations = append(violations, "This password is too common.")
	}

	if tooSimilar(password, email) {
		violations = append(violations, "The password is too similar to the email address.")
	}
	if tooSimilar(password, fullName) {
		violations = append(violations, "The password is too similar to the full name.")
	}

	return violations
}

func isEntirelyNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// tooSimilar reports whether the password contains, or is contained by, a
// significant chunk of the attribute. Both sides are compared lowercase; the
// attribute is also split on separators so "jane.doe@example.com" catches
// "janedoe" style passwords piecewise.
func tooSimilar(password, attribute string) bool {
	if password == "" || attribute == "" {
		return false
	}

	p := strings.ToLower(password)
	a := strings.ToLower(attribute)

	if strings.Contains(p, a) || strings.Contains(a, p) {
		return true
	}

	for _, part := range strings.FieldsFunc(a, func(r rune) bool {
		return r == '@' || r == '.' || r == ' ' || r == '_' || r == '-'
	}) {
		if len(part) < 4 {
			continue
		}
		if strings.Contains(p, part) {
			return true
		}
	}

	return false
}
