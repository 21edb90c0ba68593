// Package extraction turns a model's free-text response into an ordered
// list of typed actions using pattern matching.
//
// Extraction is pure and deterministic: the same text always yields the
// same action list (ignoring generated ids), and no pass ever fails.
//
// # Passes
//
// Extraction runs in priority order:
//
//  1. File blocks: a line matching "FILE: <name>" immediately followed by
//     a fenced code block yields one create_file action carrying the
//     target name and the fence's inner text verbatim. Unterminated
//     fences are skipped.
//  2. Markers: the text left over after pass 1 is scanned for secondary
//     conventions ("Action: <verb> ..." lines and numbered imperative
//     sentences). The leading verb selects the action type through a
//     fixed verb table.
//  3. Fallback: if neither pass produced anything, a single analyze_code
//     action holding the full output is synthesized, already completed —
//     a model turn always leaves an auditable artifact.
//
// # Usage
//
// Create a marker extractor with the default marker set:
//
//	extractor := extraction.NewMarkerExtractor(nil)
//	actions := extractor.Extract(modelOutput)
//
// Custom markers can be supplied; each must capture the imperative text
// as group 1.
package extraction
