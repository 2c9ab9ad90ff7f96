package pipeline

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/evidence"
)

const excerptSeparator = "\n\n---\n\n"

// NoEvidenceNotice opens every summary drafted without retrieved evidence.
const NoEvidenceNotice = "No evidence was retrieved for this topic from the local documents or the enabled web sources. " +
	"The following overview is not grounded in any retrieved source."

// Lens is the angle a reviewer critiques the draft from.
type Lens struct {
	Name         string
	Instructions string
}

// CritiqueLenses are the two independent reviewers.
var CritiqueLenses = [2]Lens{
	{
		Name: "support",
		Instructions: "1) statements that lack direct support from the provided excerpts, " +
			"2) possible biases or missing considerations, and " +
			"3) questions or follow-ups to verify the claims.",
	},
	{
		Name: "method",
		Instructions: "1) weaknesses in the reasoning or in how conclusions are drawn, " +
			"2) alternative explanations or competing findings the summary ignores, and " +
			"3) what evidence would most change the conclusions.",
	},
}

func draftPrompt(topic string, pool *evidence.Pool, maxSnippet int) string {
	if pool == nil || pool.Empty() {
		return fmt.Sprintf(
			"You are a research assistant. The user asked about: '%s'.\n\n"+
				"No excerpts could be retrieved for this topic. Say so plainly, then give a brief, cautious "+
				"overview from general knowledge and list what sources the user should consult.",
			topic)
	}
	pieces := make([]string, 0, len(pool.Items))
	for _, it := range pool.Items {
		ref := it.Ref
		if ref == "" {
			ref = it.Origin.String()
		}
		pieces = append(pieces, fmt.Sprintf("[SOURCE: %s | CHUNK: %s]\n%s",
			it.SourceLabel, ref, evidence.Truncate(strings.TrimSpace(it.Text), maxSnippet)))
	}
	return fmt.Sprintf(
		"You are a research assistant. The user asked about: '%s'.\n\n"+
			"Read the following retrieved excerpts (local documents via BM25, plus web sources) and produce a "+
			"concise summary of the main findings or facts relevant to the topic. Be explicit about which "+
			"sources support which points.\n\n"+
			"EXCERPTS:\n\n%s\n\n"+
			"Return a short summary and a short list of (source -> supporting sentence).",
		topic, strings.Join(pieces, excerptSeparator))
}

func critiquePrompt(lens Lens, summary string) string {
	return fmt.Sprintf(
		"You are a critical reviewer. Read the following summary and point out: %s\n\n"+
			"SUMMARY:\n\n%s\n\n"+
			"Give your critique in bullet points.",
		lens.Instructions, summary)
}

func synthesisPrompt(summary, critiqueA, critiqueB string, sources []string) string {
	listed := "none"
	if len(sources) > 0 {
		listed = strings.Join(sources, ", ")
	}
	return fmt.Sprintf(
		"You are a synthesizer. Combine the summary and both critiques into a 'Collective Insight Report'. "+
			"Include: a 2-3 sentence insight, 2 testable hypotheses or follow-up experiments, and which sources "+
			"would be most relevant to test those hypotheses. Keep it concise.\n\n"+
			"SUMMARY:\n%s\n\nCRITIQUE A:\n%s\n\nCRITIQUE B:\n%s\n\nSOURCES:\n%s",
		summary, critiqueA, critiqueB, listed)
}
