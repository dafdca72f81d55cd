package llm

import (
	"fmt"
	"strings"

	"github.com/astropulse/astropulse/internal/models"
)

// AstrologerPersona is the system prompt shared by reading generation
// and the chat surface.
const AstrologerPersona = `You are an experienced Vedic astrologer writing for a horoscope app. ` +
	`Your guidance is warm, specific, and practical. You ground every statement in the ` +
	`person's birth details and the current planetary transits. You never mention that ` +
	`you are an AI and you never add disclaimers.`

const readingSchema = `Respond with a single JSON object and nothing else, using exactly this shape:
{
  "work": "2-3 sentences on career and work",
  "love": "2-3 sentences on relationships",
  "health": "2-3 sentences on wellbeing",
  "finance": "2-3 sentences on money",
  "highlights": ["2 to 4 short key takeaways"],
  "auspicious_windows": [{"start": "HH:MM", "end": "HH:MM", "label": "what the window favors"}]
}`

func periodPhrase(rtype models.ReadingType, date string) string {
	switch rtype {
	case models.ReadingWeekly:
		return fmt.Sprintf("the week starting %s", date)
	case models.ReadingMonthly:
		return fmt.Sprintf("the month beginning %s", date)
	default:
		return date
	}
}

func readingPrompt(req ReadingRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the %s reading for %s for %s.\n", req.Type, req.UserName, periodPhrase(req.Type, req.Date))
	fmt.Fprintf(&b, "Birth details: born %s", req.BirthDate)
	if req.BirthTime != "" {
		fmt.Fprintf(&b, " at %s", req.BirthTime)
	}
	if req.BirthPlace != "" {
		fmt.Fprintf(&b, " in %s", req.BirthPlace)
	}
	if req.Timezone != "" {
		fmt.Fprintf(&b, " (timezone %s)", req.Timezone)
	}
	b.WriteString(".\n")
	if req.Transits != "" {
		fmt.Fprintf(&b, "Current transits: %s\n", req.Transits)
	}
	b.WriteString(readingSchema)
	return b.String()
}
