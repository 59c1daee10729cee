package models

// Decades is the catalogue of eras a photo can be reimagined in, in display order.
var Decades = []string{"1950s", "1960s", "1970s", "1980s", "1990s", "2000s"}

func IsKnownDecade(decade string) bool {
	for _, d := range Decades {
		if d == decade {
			return true
		}
	}
	return false
}

// ValidateDecades checks a selection for emptiness, unknown labels and repeats.
func ValidateDecades(decades []string) error {
	if len(decades) == 0 {
		return ErrNoDecades
	}
	seen := make(map[string]struct{}, len(decades))
	for _, d := range decades {
		if !IsKnownDecade(d) {
			return ErrUnknownDecade
		}
		if _, ok := seen[d]; ok {
			return ErrDuplicateDecade
		}
		seen[d] = struct{}{}
	}
	return nil
}
