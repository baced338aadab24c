package tutor

import (
	"fmt"
	"strings"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/catalog"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/coverage"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/gaming"
)

const transcriptMessages = 20

const persona = `You are a Socratic tutor for an undergraduate speech science course.
Never write the student's analysis for them and never give away answers.
Ask one focused question at a time that pushes the student to reason from the assigned article.
Keep replies under 150 words and write in plain conversational prose without headings or bullet lists.`

var areaPrompts = map[coverage.Area]string{
	coverage.AreaArticleEngagement:      "what the study actually did and found",
	coverage.AreaEvidenceBasedReasoning: "the specific data or statistics behind a claim",
	coverage.AreaCriticalThinking:       "limitations, confounds or threats to validity",
	coverage.AreaClinicalConnection:     "how the findings would change clinical practice",
}

var gamingNotes = map[gaming.Action]string{
	gaming.ActionWarn: "The student's last message may not be their own writing. " +
		"Gently ask them to restate the main point in their own words before moving on.",
	gaming.ActionClarify: "Several recent messages read as pasted or generated text. " +
		"Ask the student to explain one specific sentence they wrote and how they arrived at it.",
	gaming.ActionEscalate: "Recent messages repeatedly read as generated text. " +
		"Tell the student plainly that the conversation only counts when it reflects their own thinking, " +
		"and that their instructor may review it.",
}

// buildPrompt assembles the system prompt for one tutor turn.
func buildPrompt(entry catalog.WeekEntry, cov coverage.AreaCoverage, action gaming.Action) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "This week's reading (week %d): %q", entry.Week, entry.Title)
	if len(entry.Authors) > 0 {
		fmt.Fprintf(&b, " by %s", strings.Join(entry.Authors, ", "))
	}
	b.WriteString(".\n")

	var missing []string
	covered := cov.Areas()
	for _, area := range []coverage.Area{
		coverage.AreaArticleEngagement,
		coverage.AreaEvidenceBasedReasoning,
		coverage.AreaCriticalThinking,
		coverage.AreaClinicalConnection,
	} {
		if !covered[area] {
			missing = append(missing, areaPrompts[area])
		}
	}
	if len(missing) > 0 {
		fmt.Fprintf(&b, "The student has not yet discussed: %s. Steer toward one of these.\n", strings.Join(missing, "; "))
	} else {
		b.WriteString("The student has touched every rubric area. Deepen the weakest point rather than introducing new ones.\n")
	}

	if note, ok := gamingNotes[action]; ok {
		b.WriteString("\n")
		b.WriteString(note)
		b.WriteString("\n")
	}

	return b.String()
}

// transcript renders the most recent messages as model input.
func transcript(messages []Message) string {
	if len(messages) > transcriptMessages {
		messages = messages[len(messages)-transcriptMessages:]
	}
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case RoleStudent:
			b.WriteString("Student: ")
		case RoleTutor:
			b.WriteString("Tutor: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
