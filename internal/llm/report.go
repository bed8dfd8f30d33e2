package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	reportSystemPrompt = "Generate a comprehensive research report with executive summary, key findings, source analysis, and conclusions."
	reportMaxTokens    = 2000
	maxBriefSources    = 15
	maxSnippetRunes    = 280
)

type BriefSource struct {
	Title       string
	URL         string
	Description string
	Provenance  string
}

// ReportBrief is the evidence handed to the model. The model is asked to
// write from it and nothing else.
type ReportBrief struct {
	Topic    string
	Mandate  string
	Sources  []BriefSource
	Insights map[string]string
}

type ReportAuthor struct {
	client Client
}

func NewReportAuthor(client Client) ReportAuthor {
	return ReportAuthor{client: client}
}

func (a ReportAuthor) Configured() bool {
	return a.client.Configured()
}

func (a ReportAuthor) WriteReport(ctx context.Context, brief ReportBrief) (string, error) {
	return a.client.Complete(ctx, []Message{
		{Role: "system", Content: reportSystemPrompt},
		{Role: "user", Content: buildReportPrompt(brief)},
	}, reportMaxTokens)
}

func buildReportPrompt(brief ReportBrief) string {
	var b strings.Builder
	b.WriteString("Write a markdown research report. Cite only the sources listed below, by number.\n")
	b.WriteString("Start with a single level-one heading naming the topic.\n")
	b.WriteString("\nTopic:\n")
	b.WriteString(strings.TrimSpace(brief.Topic))
	b.WriteString("\n")
	if mandate := strings.TrimSpace(brief.Mandate); mandate != "" {
		b.WriteString("\nResearch mandate:\n")
		b.WriteString(mandate)
		b.WriteString("\n")
	}

	if len(brief.Insights) > 0 {
		keys := make([]string, 0, len(brief.Insights))
		for key := range brief.Insights {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		b.WriteString("\nInsights gathered so far:\n")
		for _, key := range keys {
			value := strings.TrimSpace(brief.Insights[key])
			if value == "" {
				continue
			}
			b.WriteString(fmt.Sprintf("- %s: %s\n", key, value))
		}
	}

	if len(brief.Sources) == 0 {
		b.WriteString("\nSources: none\n")
		return strings.TrimSpace(b.String())
	}
	b.WriteString("\nSources:\n")
	for i, source := range brief.Sources {
		if i >= maxBriefSources {
			break
		}
		label := strings.TrimSpace(source.Title)
		if label == "" {
			label = source.URL
		}
		b.WriteString(fmt.Sprintf("[%d] %s | %s", i+1, label, source.URL))
		if source.Provenance != "" {
			b.WriteString(" | " + source.Provenance)
		}
		b.WriteString("\n")
		if snippet := strings.TrimSpace(source.Description); snippet != "" {
			b.WriteString("  snippet: ")
			b.WriteString(trimToRunes(snippet, maxSnippetRunes))
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func trimToRunes(raw string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	return string([]rune(raw)[:limit])
}
