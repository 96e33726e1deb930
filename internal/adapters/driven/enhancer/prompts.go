// Package enhancer builds the prompts shared by the narrative enhancement
// adapters. The adapters differ only in transport; the instructions sent to
// the model are the same for all of them.
package enhancer

import (
	"fmt"
	"strings"

	"github.com/calyx-health/deid/internal/core/ports/driven"
)

// sectionGuidance maps section names to section-specific instructions.
// Unknown sections fall back to generic guidance.
var sectionGuidance = map[string]string{
	"case_synopsis":                  "Provide a concise overview of the client's situation, reason for referral, and general assessment purpose. Focus on clarity and context.",
	"background_information":         "Organise relevant history chronologically. Highlight key events that impact current function. Include relevant personal, medical, and vocational history.",
	"assessment_methodology":         "Detail evaluation methods with specific tests performed and standardised measures. Describe the assessment environment and any adaptations made.",
	"functional_observations":        "Present objective findings in clear categories (physical, cognitive, emotional). Link observations to functional impact and daily activities.",
	"activities_of_daily_living":     "Structure by activity type (self-care, instrumental ADLs, etc.). For each activity, describe current ability, limitations, and adaptations.",
	"social_functioning":             "Describe interpersonal capabilities, community integration, and support systems. Note changes from pre-injury/illness baseline if mentioned.",
	"concentration_persistence_pace": "Detail attentional capacity, task sustainability, and work rhythm. Include specific examples of performance limitations and strengths.",
	"adaptability_work_settings":     "Analyse ability to adapt to various environments and respond to workplace demands. Note specific accommodations that may be beneficial.",
	"summary_recommendations":        "Synthesise key findings and provide clear, specific recommendations tied directly to assessment results. Prioritise recommendations by importance.",
}

const defaultGuidance = "Organise content logically and enhance clarity while maintaining all clinical information."

// FormatSection turns a snake_case section name into a readable title.
func FormatSection(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// BuildPrompt renders the enhancement instructions for one request. The
// content has been de-identified upstream; the prompt's first rule is that
// every placeholder token must survive the rewrite byte for byte.
//
// The chunked variant never mentions the chunk's position: the prompt must
// depend only on section and content so the result cache, which is keyed
// on those, returns a response produced under the same instructions.
func BuildPrompt(req driven.EnhanceRequest) string {
	section := FormatSection(req.Section)

	var b strings.Builder
	if req.TotalChunks > 1 {
		fmt.Fprintf(&b, "You are an expert clinical documentation specialist enhancing a %s section that has been split into parts due to length. This is one part of the full section.\n",
			section)
	} else {
		fmt.Fprintf(&b, "You are an expert clinical documentation specialist with extensive experience in occupational therapy and medico-legal report writing. Your task is to enhance the following %s section of a clinical report.\n", section)
	}

	b.WriteString(`
## IMPORTANT GUIDELINES

1. MAINTAIN ALL PLACEHOLDERS: The content has been de-identified, with placeholders like [PERSON_1] or [DATE_3]. You MUST preserve these placeholders EXACTLY as they appear.

2. CLINICAL LANGUAGE: Use precise, professional terminology appropriate for occupational therapy assessments, while maintaining clarity for non-clinical readers.

3. CONTENT REQUIREMENTS:
   - Preserve all factual information and clinical data from the original
   - Do not introduce new medical facts, diagnoses, or clinical interpretations
   - When describing functional limitations, clearly connect them to activities of daily living

4. STYLE AND TONE:
   - Maintain objective, evidence-based language
   - Use active voice where appropriate
   - Eliminate redundancy and vague or ambiguous statements
   - Ensure statements are supported by the information provided
`)

	if req.TotalChunks > 1 {
		b.WriteString("\n5. CHUNK INTEGRITY: Enhance only this part. If a sentence is cut off, finish it naturally based on context.\n")
	} else {
		guidance, ok := sectionGuidance[req.Section]
		if !ok {
			guidance = defaultGuidance
		}
		fmt.Fprintf(&b, "\n5. SECTION-SPECIFIC GUIDANCE:\n%s\n", guidance)
	}

	fmt.Fprintf(&b, "\n## ORIGINAL CONTENT TO ENHANCE:\n\n%s\n", req.Content)
	fmt.Fprintf(&b, "\n## TASK:\n\nRewrite the %s content above, adhering to all guidelines. Respond with the enhanced narrative only, no preamble.\n", section)
	return b.String()
}
