package validation

import "unicode"

// MinPasswordLength is shared by the registration and reset policies.
const MinPasswordLength = 8

// Password policy messages, in the order they are reported.
const (
	MsgPasswordTooShort  = "password must be at least 8 characters"
	MsgPasswordNoDigit   = "password must contain at least one digit"
	MsgPasswordNoUpper   = "password must contain at least one uppercase letter"
	MsgPasswordMismatch  = "passwords do not match"
	MsgPasswordNoConfirm = "please confirm the password"
)

// RegistrationPasswordViolations applies the signup policy: length and a digit.
func RegistrationPasswordViolations(password string) []string {
	var out []string
	if len([]rune(password)) < MinPasswordLength {
		out = append(out, MsgPasswordTooShort)
	}
	if !containsFunc(password, unicode.IsDigit) {
		out = append(out, MsgPasswordNoDigit)
	}
	return out
}

// ResetPasswordViolations applies the reset policy, which also requires an uppercase letter.
func ResetPasswordViolations(password string) []string {
	out := RegistrationPasswordViolations(password)
	if !containsFunc(password, unicode.IsUpper) {
		out = append(out, MsgPasswordNoUpper)
	}
	return out
}

// ConfirmationViolations reports a missing or mismatched confirmation.
func ConfirmationViolations(password, confirmation string) []string {
	if confirmation == "" {
		return []string{MsgPasswordNoConfirm}
	}
	if password != confirmation {
		return []string{MsgPasswordMismatch}
	}
	return nil
}

func containsFunc(s string, f func(rune) bool) bool {
	for _, r := range s {
		if f(r) {
			return true
		}
	}
	return false
}
