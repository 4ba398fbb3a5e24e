// Package investigation wires the plagiarism investigation on top of the
// graph engine.
//
// A team leader graph splits the submitted text into sentences and maps
// every sentence onto a web searcher sub-graph. Each searcher retrieves
// documents for its sentence, asks the completion backend whether the
// sentence was copied and files the exchange as a finding. Once every
// searcher is done the leader writes a report and a conclusion in parallel
// and joins them into the final report.
//
//	Start -> split_to_queries =map=> search_cheaters x N
//	search_cheaters -> write_report, write_conclusion
//	[write_conclusion, write_report] -> finalize_report -> End
//
// The searcher sub-graph is Start -> search_web -> check_if_copied ->
// save_findings -> End. Use [New] to build an [Investigator].
package investigation
