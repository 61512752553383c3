package provider

import "github.com/sydlexius/cadenza/internal/textmatch"

// YearTolerance is how far a release year may drift from the reference
// year and still satisfy a filter. Reissues often shift the year.
const YearTolerance = 2

// MatchesFilter reports whether a release satisfies the filter. Empty filter
// fields and unknown release years never exclude a release.
func MatchesFilter(r ExternalRelease, f ReleaseFilter) bool {
	if f.Year != 0 && r.Year != 0 {
		diff := r.Year - f.Year
		if diff < 0 {
			diff = -diff
		}
		if diff > YearTolerance {
			return false
		}
	}

	if f.Performer != "" && !anyMatch(f.Performer, r.Artists) {
		return false
	}
	if f.Label != "" && !anyMatch(f.Label, r.Labels) {
		return false
	}
	return true
}

// FilterReleases returns the releases satisfying f, preserving order.
func FilterReleases(releases []ExternalRelease, f ReleaseFilter) []ExternalRelease {
	out := make([]ExternalRelease, 0, len(releases))
	for _, r := range releases {
		if MatchesFilter(r, f) {
			out = append(out, r)
		}
	}
	return out
}

func anyMatch(want string, have []string) bool {
	for _, h := range have {
		if textmatch.Overlap(want, h) || textmatch.Contains(want, h) {
			return true
		}
	}
	return false
}
