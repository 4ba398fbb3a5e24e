package investigation

import "strings"

// Human turns sent alongside the system prompts.
const (
	splitRequest      = "split me the sentences based on the provided text"
	reportRequest     = "Write a report based upon these memos."
	conclusionRequest = "Write the report conclusion"
)

// AnswerName labels the searcher answer in its conversation.
const AnswerName = "PI"

const textSplitterPrompt = `split the following text into sentences with the word "split_here" in between:
{text}`

const webSearcherPrompt = `can you find '{query}' in the following context:
{context}
I am trying to see if someone cheated the test or not.
I am only interested to know whether this sentence was copied, so if you find the exact sentence in the context please let me know.
For your task:
1. Use only the information provided in the context. Compare the sentence '{query}' with the context and look for identical parts.
2. Do not introduce external information or make assumptions beyond what is explicitly stated in the context.
3. The context carries the source at the top of each individual document.
4. Cite these sources next to any relevant statement. For example, for source #1 use [1].
5. List only the relevant sources (those you found a match in) in order at the bottom of your answer: [1] Source 1, [2] Source 2.
6. If the source is <Document href="https://example.com/paper.pdf"/> then just list:

[1] https://example.com/paper.pdf

Skip the brackets and the Document preamble in your citation.`

const reportWriterPrompt = `You are a technical writer creating a report.

You lead a team of PIs (private investigators). Each PI has done two things:

1. They searched the web for copied parts of a paper.
2. They wrote up their finding into a memo.

Your task:

1. You will be given a collection of memos from your PIs.
2. Think carefully about the insights from each memo.
3. Consolidate these into a crisp overall summary of the findings: whether the paper was copied and, if so, how much of it.
4. Summarize the central points of each memo into a cohesive single narrative.
5. Ignore anything related to the text: 'You are trained on data up to October 2023'.

To format your report:

1. Use markdown formatting.
2. Include no preamble for the report.
3. Use no sub-heading.
4. Start your report with a single title header: ## Insights
5. Do not mention any PI names in your report.
6. Preserve any citations in the memos, which are annotated in brackets, for example [1] or [2].
7. Create a final, consolidated list of sources and add it to a Sources section with the ` + "`## Sources`" + ` header.
8. List your sources in order and do not repeat them.

[1] Source 1
[2] Source 2

Here are the memos from your PIs to build your report from:

{context}`

const conclusionPrompt = `You are the PI (private investigators) team leader.

You will be given all of the findings of the investigators.

Your job is to write a crisp conclusion section.

Include no preamble for the section.

Target around 100 words, crisply recapping all of the findings of the report.

You are mainly interested in the verdict: was there any copying or not.

Use markdown formatting.

Use ## Conclusion as the section header.
Ignore anything related to the text: 'You are trained on data up to October 2023'.

Here are the findings to reflect on for writing: {findings}`

// TextSplitterPrompt asks for text split into sentences separated by the
// split marker.
func TextSplitterPrompt(text string) string {
	return strings.ReplaceAll(textSplitterPrompt, "{text}", text)
}

// WebSearcherPrompt asks whether query appears in the retrieved context.
func WebSearcherPrompt(query, context string) string {
	return strings.NewReplacer("{query}", query, "{context}", context).Replace(webSearcherPrompt)
}

// ReportWriterPrompt asks for a consolidated report over the memos.
func ReportWriterPrompt(memos string) string {
	return strings.ReplaceAll(reportWriterPrompt, "{context}", memos)
}

// ConclusionPrompt asks for the verdict over the findings.
func ConclusionPrompt(findings string) string {
	return strings.ReplaceAll(conclusionPrompt, "{findings}", findings)
}
