// Package codes turns raw OCR text into catalogue identifiers such as PA-0425_AF.
//
// Before matching, every letter O becomes the digit 0 and every letter I becomes
// the digit 1. Labels misread by OCR are usually recovered this way, but a real O
// or I anywhere in the text is lost. A suffix such as "OI" can never be read back.
// This is a known source of false corrections and is kept on purpose for
// compatibility with existing catalogue data.
package codes

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	corePattern   = regexp.MustCompile(`([A-Z]{2})[-_]{0,2}(\d{3,4})`)
	suffixPattern = regexp.MustCompile(`[A-Z]{2}$`)

	misreads = strings.NewReplacer("O", "0", "I", "1")
)

// Normalize extracts an identifier from raw OCR text.
// It returns false when no identifier pattern occurs.
func Normalize(raw string) (string, bool) {
	text := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.ToUpper(raw))
	if text == "" {
		return "", false
	}

	text = misreads.Replace(text)

	m := corePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	prefix, number := m[1], m[2]

	code := prefix + "-" + number
	if suffix := suffixPattern.FindString(text); suffix != "" && suffix != prefix {
		code += "_" + suffix
	}
	return code, true
}

// Join concatenates OCR fragments in reading order.
func Join(fragments []string) string {
	return strings.Join(fragments, "")
}
