package answer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ezgisubasi/leadership-coach-llm/internal/retrieval"
)

// Source is a retrieved video as numbered in the prompt. ID starts at 1 for
// every answer.
type Source struct {
	ID    int     `json:"id"`
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// SourcesFrom numbers the hits in rank order.
func SourcesFrom(res retrieval.Results) []Source {
	sources := make([]Source, 0, len(res.Hits))
	for i, h := range res.Hits {
		sources = append(sources, Source{
			ID:    i + 1,
			Title: h.Title,
			URL:   h.URL,
			Score: h.Score,
		})
	}
	return sources
}

// BuildPrompt renders the single generation prompt. Output depends only on
// its arguments.
func BuildPrompt(cfg Configuration, question string, sources []Source) string {
	loc := localeFor(cfg.Language)

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(cfg.SystemPrompt)
	b.WriteString("\n\n")
	b.WriteString(loc.contextHeading)
	b.WriteString("\n")
	for _, s := range sources {
		fmt.Fprintf(&b, "Video %d: %s (%s: %s)\n", s.ID, s.Title, loc.scoreLabel, strconv.FormatFloat(s.Score, 'f', -1, 64))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s: %s\n\n", loc.questionLabel, question)
	b.WriteString(loc.rulesHeading)
	b.WriteString("\n")
	fmt.Fprintf(&b, "- %s\n", loc.ruleDetail)
	fmt.Fprintf(&b, "- %s\n", loc.ruleCite)
	fmt.Fprintf(&b, "- "+loc.ruleLanguage+"\n", languageName(cfg.Language))
	fmt.Fprintf(&b, "- %s\n", loc.ruleListSources)
	return b.String()
}

var markerPattern = regexp.MustCompile(`\[Video (\d+)\]`)

// BindCitations replaces each [Video i] marker with a markdown link to source
// i. Markers outside 1..len(sources) are kept as written.
func BindCitations(raw string, sources []Source) string {
	return markerPattern.ReplaceAllStringFunc(raw, func(marker string) string {
		m := markerPattern.FindStringSubmatch(marker)
		i, err := strconv.Atoi(m[1])
		if err != nil || i < 1 || i > len(sources) {
			return marker
		}
		s := sources[i-1]
		return fmt.Sprintf("[%s](%s)", s.Title, s.URL)
	})
}
