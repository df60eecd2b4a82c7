// Package naming maps grid slots to filesystem-safe tile names.
package naming

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/justapithecus/gridcap/types"
)

// NamespaceSeparator separates a namespace from an entry id ("minecraft:dirt").
const NamespaceSeparator = ":"

// Unnamed replaces names that sanitize to the empty string.
const Unnamed = "unnamed"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Resolve returns the sanitized tile name for slot on page.
// Slots missing from names get a synthetic name built from page and slot.
// Colliding names are not deduplicated.
func Resolve(slot int, names types.SlotNameMap, page int) string {
	raw, ok := names[slot]
	if !ok {
		raw = Synthetic(page, slot)
	}
	return Sanitize(raw)
}

// Synthetic returns the fallback raw name for an unannounced slot.
func Synthetic(page, slot int) string {
	return fmt.Sprintf("page%d-slot%d", page, slot)
}

// Sanitize drops everything up to the last namespace separator and replaces
// any character outside [A-Za-z0-9_] with an underscore.
func Sanitize(raw string) string {
	if i := strings.LastIndex(raw, NamespaceSeparator); i >= 0 {
		raw = raw[i+len(NamespaceSeparator):]
	}
	name := unsafeChars.ReplaceAllString(raw, "_")
	if name == "" {
		return Unnamed
	}
	return name
}
