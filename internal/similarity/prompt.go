package similarity

import (
	"fmt"
	"strings"

	"github.com/profilescout/profilescout/internal/profile"
)

// renderProfile flattens a profile record into a deterministic text block for
// prompting. Field order is fixed so identical records always yield identical
// prompts.
func renderProfile(rec *profile.Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Name: %s\n", rec.Name)
	if rec.Headline != "" {
		fmt.Fprintf(&b, "Headline: %s\n", rec.Headline)
	}
	if rec.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", rec.Location)
	}
	if rec.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", rec.Summary)
	}
	if len(rec.Skills) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(rec.Skills, ", "))
	}

	if len(rec.Positions) > 0 {
		b.WriteString("Experience:\n")
		for _, pos := range rec.Positions {
			fmt.Fprintf(&b, "- %s at %s", pos.Title, pos.Company)
			if pos.StartDate != "" {
				end := pos.EndDate
				if end == "" {
					end = "present"
				}
				fmt.Fprintf(&b, " (%s to %s)", pos.StartDate, end)
			}
			b.WriteString("\n")
			if pos.Description != "" {
				fmt.Fprintf(&b, "  %s\n", pos.Description)
			}
		}
	}

	if len(rec.Education) > 0 {
		b.WriteString("Education:\n")
		for _, edu := range rec.Education {
			fmt.Fprintf(&b, "- %s", edu.School)
			if edu.Degree != "" {
				fmt.Fprintf(&b, ", %s", edu.Degree)
			}
			if edu.Field != "" {
				fmt.Fprintf(&b, " in %s", edu.Field)
			}
			b.WriteString("\n")
		}
	}

	if len(rec.Certifications) > 0 {
		fmt.Fprintf(&b, "Certifications: %s\n", strings.Join(rec.Certifications, ", "))
	}

	return b.String()
}

// buildComparePrompt produces the pairwise comparison prompt. The response
// format it requests matches what parseLegacyResponse expects.
func buildComparePrompt(a, b *profile.Record) string {
	var sb strings.Builder
	sb.WriteString("Compare the following two professional profiles and rate their similarity.\n\n")
	sb.WriteString("Profile 1:\n")
	sb.WriteString(renderProfile(a))
	sb.WriteString("\nProfile 2:\n")
	sb.WriteString(renderProfile(b))
	sb.WriteString("\nConsider skills, experience, industry, seniority, and education.\n")
	sb.WriteString("Respond in exactly this format:\n")
	sb.WriteString("Similarity Score: <number>%\n")
	sb.WriteString("Explanation: <one or two sentences>\n")
	return sb.String()
}

// buildScorePrompt produces the structured comparison prompt. The model is
// asked for a JSON object so the staged parser can pull out the score even
// when the response wraps it in prose.
func buildScorePrompt(base, candidate *profile.Record) string {
	var sb strings.Builder
	sb.WriteString("You are rating how similar two professional profiles are.\n\n")
	sb.WriteString("Base profile:\n")
	sb.WriteString(renderProfile(base))
	sb.WriteString("\nCandidate profile:\n")
	sb.WriteString(renderProfile(candidate))
	sb.WriteString("\nConsider skills, experience, industry, seniority, and education.\n")
	sb.WriteString("Respond with a JSON object only, no other text:\n")
	sb.WriteString(`{"similarity_score": <integer 0-100>, "explanation": "<brief explanation>"}`)
	sb.WriteString("\n")
	return sb.String()
}
