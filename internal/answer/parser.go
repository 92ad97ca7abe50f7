package answer

import "strings"

// ParseSections extracts the narrative and followup from refiner output.
//
// The expected shape is two marked lines ("Answer: ...", "Followup: ..."),
// but model output drifts: markers vary in case, pick up list numbering, or
// vanish entirely. Parsing degrades in steps. Marked lines win; text with no
// markers at all becomes the narrative with no followup; blank output is
// unusable and reported as such.
func ParseSections(text string) (narrative, followup string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", false
	}

	var narrativeLines []string
	var followupLines []string
	inFollowup := false
	sawMarker := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		stripped := stripListPrefix(line)

		if rest, found := cutMarker(stripped, "answer:"); found {
			sawMarker = true
			inFollowup = false
			if rest != "" {
				narrativeLines = append(narrativeLines, rest)
			}
			continue
		}
		if rest, found := cutMarker(stripped, "followup:"); found {
			sawMarker = true
			inFollowup = true
			if rest != "" {
				followupLines = append(followupLines, rest)
			}
			continue
		}
		if rest, found := cutMarker(stripped, "follow-up:"); found {
			sawMarker = true
			inFollowup = true
			if rest != "" {
				followupLines = append(followupLines, rest)
			}
			continue
		}

		if inFollowup {
			followupLines = append(followupLines, line)
		} else {
			narrativeLines = append(narrativeLines, line)
		}
	}

	narrative = strings.Join(narrativeLines, " ")
	followup = strings.Join(followupLines, " ")

	if sawMarker {
		// "Followup:"-only output has nothing to answer with.
		if narrative == "" {
			return "", "", false
		}
		return narrative, followup, true
	}

	// No markers at all: treat the whole text as the narrative.
	return narrative, "", narrative != ""
}

// cutMarker matches a section marker case-insensitively at the start of a
// line and returns the remainder.
func cutMarker(line, marker string) (string, bool) {
	if len(line) < len(marker) {
		return "", false
	}
	if !strings.EqualFold(line[:len(marker)], marker) {
		return "", false
	}
	return strings.TrimSpace(line[len(marker):]), true
}

// stripListPrefix removes leading list numbering or bullets ("1. ", "- ",
// "* ") that models sometimes prepend to the marked lines.
func stripListPrefix(line string) string {
	trimmed := strings.TrimLeft(line, "0123456789")
	if trimmed != line {
		trimmed = strings.TrimLeft(trimmed, ".) ")
		if trimmed != "" {
			return trimmed
		}
		return line
	}
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		return strings.TrimSpace(line[2:])
	}
	return line
}
