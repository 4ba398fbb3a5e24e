package investigation

import "strings"

const (
	insightsHeader  = "## Insights"
	sourcesHeader   = "\n## Sources\n"
	reportSeparator = "\n\n---\n\n"
)

// FinalizeReport joins the report body and the conclusion. A leading
// "## Insights" title is dropped and the first "## Sources" section of the
// body is moved after the conclusion. Bodies that do not follow the
// requested layout are kept as they are.
func FinalizeReport(content, conclusion string) string {
	content = strings.TrimPrefix(content, insightsHeader)

	body, sources, hasSources := strings.Cut(content, sourcesHeader)

	var report strings.Builder
	report.WriteString(reportSeparator)
	report.WriteString(body)
	report.WriteString(reportSeparator)
	report.WriteString(conclusion)
	if hasSources {
		report.WriteString("\n\n## Sources\n")
		report.WriteString(sources)
	}
	return report.String()
}

// Report is the outcome of an investigation thread.
type Report struct {
	ThreadID string `json:"thread_id"`
	// Queries are the sentences that were searched for.
	Queries []string `json:"queries"`
	// Findings holds one transcript per completed searcher.
	Findings    []string `json:"findings"`
	Content     string   `json:"content,omitempty"`
	Conclusion  string   `json:"conclusion,omitempty"`
	FinalReport string   `json:"final_report,omitempty"`
}

// Complete reports whether the final report was written.
func (r *Report) Complete() bool {
	return r.FinalReport != ""
}
