// Package analysis parses the structured per-item analysis text into display features.
package analysis

import (
	"strings"

	"github.com/kailas-cloud/cinesim/internal/domain/modality"
)

// Section is a tagged block of the narrative analysis.
type Section string

// Known sections, in display order.
const (
	VisualStyle    Section = "visual_style"
	NarrativeArc   Section = "narrative_arc"
	AudioLandscape Section = "audio_landscape"
	EmotionalVibe  Section = "emotional_vibe"
)

var sections = []struct {
	marker string
	key    Section
}{
	{"[VISUAL_STYLE]", VisualStyle},
	{"[NARRATIVE_ARC]", NarrativeArc},
	{"[AUDIO_LANDSCAPE]", AudioLandscape},
	{"[EMOTIONAL_VIBE]", EmotionalVibe},
}

const minFeatureLength = 3

// Feature is one extracted descriptor.
type Feature struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Fixed descriptors for modalities whose analysis carries no parsable text.
const (
	visualDescriptor = "CLIP visual embeddings + Color histograms"
	audioDescriptor  = "Tempo detection + Spectral contrast analysis"
)

// Modality is the analysis of one modality for one item.
type Modality struct {
	Available bool      `json:"available"`
	Content   string    `json:"content,omitempty"`
	Features  []Feature `json:"features"`
}

// Report is the full per-item analysis.
type Report struct {
	Title     string   `json:"title"`
	Narrative Modality `json:"narrative"`
	Visual    Modality `json:"visual"`
	Audio     Modality `json:"audio"`
}

// ParseSections splits structured analysis text into features grouped by section.
// A section runs from its marker to the next '['. Items are split on ',' or,
// failing that, on ';'. Items of three characters or fewer are dropped and
// trailing dots are stripped.
func ParseSections(text string) map[Section][]Feature {
	out := make(map[Section][]Feature)
	if text == "" {
		return out
	}

	for _, s := range sections {
		start := strings.Index(text, s.marker)
		if start < 0 {
			continue
		}
		start += len(s.marker)
		end := strings.IndexByte(text[start:], '[')
		if end < 0 {
			end = len(text)
		} else {
			end += start
		}

		content := strings.TrimSpace(text[start:end])
		content = strings.TrimSpace(strings.TrimPrefix(content, ":"))

		for _, raw := range splitItems(content) {
			v := strings.TrimSpace(raw)
			if len(v) <= minFeatureLength {
				continue
			}
			v = strings.TrimRight(v, ".")
			if v == "" {
				continue
			}
			out[s.key] = append(out[s.key], Feature{
				Type:  strings.ReplaceAll(string(s.key), "_", " "),
				Value: v,
			})
		}
	}
	return out
}

func splitItems(content string) []string {
	for _, d := range []string{",", ";"} {
		if strings.Contains(content, d) {
			return strings.Split(content, d)
		}
	}
	if content == "" {
		return nil
	}
	return []string{content}
}

// Features extracts display features for one modality.
func Features(text string, m modality.Axis) []Feature {
	if text == "" {
		return []Feature{}
	}
	switch m {
	case modality.Narrative:
		parsed := ParseSections(text)
		features := []Feature{}
		for _, s := range sections {
			features = append(features, parsed[s.key]...)
		}
		return features
	case modality.Visual:
		return []Feature{{Type: "feature", Value: visualDescriptor}}
	case modality.Audio:
		return []Feature{{Type: "feature", Value: audioDescriptor}}
	}
	return []Feature{}
}

// Build assembles a report from stored analysis texts.
// available marks which modalities have stored data at all.
func Build(title string, texts map[modality.Axis]string, available map[modality.Axis]bool) Report {
	mk := func(m modality.Axis) Modality {
		return Modality{
			Available: available[m],
			Content:   texts[m],
			Features:  Features(texts[m], m),
		}
	}
	return Report{
		Title:     title,
		Narrative: mk(modality.Narrative),
		Visual:    mk(modality.Visual),
		Audio:     mk(modality.Audio),
	}
}
