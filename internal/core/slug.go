package core

import "strings"

// Slugify normalizes a name for identifier use: lowercase with spaces
// replaced by hyphens. "Jane Doe" becomes "jane-doe".
func Slugify(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "-")
}

// SlugifyLink normalizes a shot/asset link for identifier use: the Slugify
// rules plus slashes replaced by hyphens, so "Shot/010" becomes "shot-010".
// The same slug feeds both the asset context pointer and the inputAsset
// field; they must never disagree.
func SlugifyLink(s string) string {
	return strings.ReplaceAll(Slugify(s), "/", "-")
}
