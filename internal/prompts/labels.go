package prompts

import "strings"

// Human-readable labels substituted for enum codes in generation payloads.

var speakingDurationLabels = map[string]string{
	"less_than_2_weeks": "Less than 2 weeks",
	"2_weeks_1_month":   "2 weeks to 1 month",
	"1_3_months":        "1–3 months",
	"3_6_months":        "3–6 months",
	"6_plus_months":     "6+ months",
	"not_sure":          "Not sure",
}

var lastContactLabels = map[string]string{
	"1_2_weeks":     "1–2 weeks",
	"1_month":       "1 month",
	"2_3_months":    "2–3 months",
	"3_6_months":    "3–6 months",
	"6_plus_months": "6+ months",
	"not_sure":      "Not sure",
}

var wantsToLearnLabels = map[string]string{
	"chose_competitor": "Did they choose a competitor?",
	"reason_for_delay": "What's the reason for the delay?",
	"still_active":     "Is this still an active opportunity?",
	"why_we_lost":      "If not, why did we lose?",
	"other":            "Other (they'll explain in feedback)",
}

// SpeakingDurationLabel maps a duration code to its label; unknown codes
// pass through so tenant-specific values still read sensibly.
func SpeakingDurationLabel(code string) string {
	if label, ok := speakingDurationLabels[code]; ok {
		return label
	}
	return code
}

func LastContactLabel(code string) string {
	if label, ok := lastContactLabels[code]; ok {
		return label
	}
	return code
}

// WantsToLearnLabels renders the rep's learning goals as one readable line.
func WantsToLearnLabels(codes []string) string {
	if len(codes) == 0 {
		return ""
	}
	labels := make([]string, 0, len(codes))
	for _, code := range codes {
		if label, ok := wantsToLearnLabels[code]; ok {
			labels = append(labels, label)
		} else {
			labels = append(labels, code)
		}
	}
	return strings.Join(labels, ", ")
}
