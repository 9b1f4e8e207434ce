package validator

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// NoGroup is the group input meaning "student has no group".
const NoGroup = "0"

// Field length bounds, counted in runes.
const (
	TeamNameMin      = 3
	TeamNameMax      = 64
	ProductNameMin   = 3
	ProductNameMax   = 100
	GroupNumberMin   = 2
	GroupNumberMax   = 16
	ReportTextMin    = 20
	ReportTextMax    = 4000
	ReviewTextMin    = 15
	ReviewTextMax    = 1000
	DefaultMinRating = 1
	DefaultMaxRating = 10
)

// Two Cyrillic words, each a capital letter followed by 1-17 lowercase letters.
var fullNamePattern = regexp.MustCompile(`^[А-ЯЁ][а-яё]{1,17} [А-ЯЁ][а-яё]{1,17}$`)

// IsValidFullName reports whether s is a "Имя Фамилия" style name.
func IsValidFullName(s string) bool {
	return fullNamePattern.MatchString(strings.TrimSpace(s))
}

// IsValidTeamName bounds team names to 3..64 characters.
func IsValidTeamName(s string) bool {
	return lengthWithin(s, TeamNameMin, TeamNameMax)
}

// IsValidProductName bounds product names to 3..100 characters.
func IsValidProductName(s string) bool {
	return lengthWithin(s, ProductNameMin, ProductNameMax)
}

// IsValidGroupNumber accepts 2..16 characters or the NoGroup sentinel.
func IsValidGroupNumber(s string) bool {
	s = strings.TrimSpace(s)
	return s == NoGroup || lengthWithin(s, GroupNumberMin, GroupNumberMax)
}

// IsValidRating reports whether n lies within [min, max].
func IsValidRating(n, min, max int) bool {
	return n >= min && n <= max
}

// IsValidSprint reports whether n is a sprint number in 1..max.
func IsValidSprint(n, max int) bool {
	return n >= 1 && n <= max
}

// IsValidReportText bounds sprint report bodies.
func IsValidReportText(s string) bool {
	return lengthWithin(s, ReportTextMin, ReportTextMax)
}

// IsValidReviewText bounds the advantages / disadvantages fields of a rating.
func IsValidReviewText(s string) bool {
	return lengthWithin(s, ReviewTextMin, ReviewTextMax)
}

func lengthWithin(s string, min, max int) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= min && n <= max
}

func registerDomainRules(v *validator.Validate) {
	rules := map[string]func(string) bool{
		"fullname":    IsValidFullName,
		"teamname":    IsValidTeamName,
		"productname": IsValidProductName,
		"groupnum":    IsValidGroupNumber,
		"reporttext":  IsValidReportText,
		"reviewtext":  IsValidReviewText,
	}
	for tag, rule := range rules {
		rule := rule
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return rule(fl.Field().String())
		})
	}
}
