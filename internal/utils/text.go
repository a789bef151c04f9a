package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// Control characters (except common whitespace)
var controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// Spreadsheet cells arrive with copy-paste junk; anything longer than
// this is not a name.
const maxCellLength = 512

// SanitizeCellText cleans one imported spreadsheet cell: control
// characters go, whitespace runs collapse to a single space, and the
// result is trimmed and length-capped. Lengths count runes, not bytes,
// so Arabic text is never cut mid-character.
func SanitizeCellText(text string) string {
	text = controlCharPattern.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")
	if runes := []rune(text); len(runes) > maxCellLength {
		text = string(runes[:maxCellLength])
	}
	return text
}

// TruncateText truncates text to maxLen runes, adding "..." if truncated
// Also removes newlines for single-line display
func TruncateText(text string, maxLen int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}

// EscapeForLogging escapes raw imported text for safe single-line logging
func EscapeForLogging(text string, maxLen int) string {
	if runes := []rune(text); len(runes) > maxLen {
		text = string(runes[:maxLen]) + "..."
	}

	text = strings.ReplaceAll(text, "\n", "\\n")
	text = strings.ReplaceAll(text, "\r", "\\r")
	text = strings.ReplaceAll(text, "\t", "\\t")

	return text
}

// FormatNumber formats a number with comma separators
// Examples: 123 -> "123", 1234 -> "1,234", 1234567 -> "1,234,567"
func FormatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	var result []rune
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, c)
	}
	return string(result)
}

// FormatAmount renders a guarantee amount for display, with grouped
// thousands and two decimals: 1234567.5 -> "1,234,567.50"
func FormatAmount(amount float64) string {
	whole := int(amount)
	cents := int((amount-float64(whole))*100 + 0.5)
	if cents >= 100 {
		whole++
		cents -= 100
	}
	return fmt.Sprintf("%s.%02d", FormatNumber(whole), cents)
}
