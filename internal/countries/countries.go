// Package countries validates the optional country tag attached to a
// candle. Tags come from a closed enumeration: ISO 3166-1 alpha-2 codes.
package countries

import (
	"errors"
	"strings"

	"golang.org/x/text/language"
)

// ErrUnknownCountry is returned when a tag is not a recognised country code.
var ErrUnknownCountry = errors.New("unknown country code")

// Normalize trims and upper-cases a country tag and validates it against
// ISO 3166-1 alpha-2. The empty string is valid and means "no tag".
func Normalize(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", nil
	}
	if len(code) != 2 {
		return "", ErrUnknownCountry
	}
	region, err := language.ParseRegion(code)
	if err != nil {
		return "", ErrUnknownCountry
	}
	if !region.IsCountry() || region.IsPrivateUse() {
		return "", ErrUnknownCountry
	}
	return region.String(), nil
}

// Valid reports whether code is empty or a recognised country code.
func Valid(code string) bool {
	_, err := Normalize(code)
	return err == nil
}
