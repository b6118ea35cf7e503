// utils/validation.go
package utils

import (
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^(\+|0)?[1-9]\d{6,14}$`)

var phoneNoise = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// NormalizePhone strips spaces, dashes and parentheses.
func NormalizePhone(phone string) string {
	return phoneNoise.Replace(strings.TrimSpace(phone))
}

// ValidatePhone accepts international numbers (+ and 7-15 digits) and national
// numbers with a trunk 0 prefix.
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(NormalizePhone(phone))
}
