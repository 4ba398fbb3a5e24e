// Package search defines the document retrieval surface: a [Provider] returns
// up to N [Document] values for a query. Backend failures are reported as
// [*RetrievalServiceError]. [FormatDocuments] renders results as the context
// block handed to a completion provider.
package search
