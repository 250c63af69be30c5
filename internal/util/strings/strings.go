// Package strings holds small helpers for user-facing text.
package strings

// Pluralize returns singular or plural form based on count.
// Pluralize("file", 0) is "files".
func Pluralize(word string, count int64) string {
	if count == 1 {
		return word
	}
	return word + "s"
}
