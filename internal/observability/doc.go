// Package observability records board mutations as structured JSON Lines
// and derives activity summaries from them on demand.
package observability
