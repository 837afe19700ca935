package settings

import (
	"regexp"

	"github.com/pypeclub/OpenPype/layering"
)

// Metadata keys written next to values by SettingsValue.
const (
	// MOverridenKey lists child keys overridden at the serialized layer.
	MOverridenKey = layering.OverridenKey
	// MEnvironmentKey maps an environment group key to the variables it holds.
	MEnvironmentKey = layering.EnvironmentKey
	// MDynamicKeyLabel maps mutable dict keys to their display labels.
	MDynamicKeyLabel = layering.DynamicKeyLabel
)

// KeyAllowedSymbols is the character class accepted in mutable dict keys.
const KeyAllowedSymbols = `a-zA-Z0-9\-_ `

var (
	keyRegex        = regexp.MustCompile(`^[` + KeyAllowedSymbols + `]+$`)
	keyInvalidChars = regexp.MustCompile(`[^` + KeyAllowedSymbols + `]+`)
)

// ValidKey reports whether key may be used in a mutable dict.
func ValidKey(key string) bool {
	return keyRegex.MatchString(key)
}

// SanitizeKey replaces every run of disallowed characters with "_".
func SanitizeKey(key string) string {
	return keyInvalidChars.ReplaceAllString(key, "_")
}

// NotSet marks a layer value that was never provided. It is distinct from nil
// and from empty containers.
var NotSet = layering.NotSet

// IsNotSet reports whether value is the NotSet marker.
func IsNotSet(value any) bool {
	return layering.IsNotSet(value)
}
