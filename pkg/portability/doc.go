// Package portability moves whole configuration documents in and out of
// cfgd.
//
// A document has the same shape as GET /configuration/:
//
//	{"Version": "v1", "MessageHub": {"hub1": {...}}, "TraceLevel": "5"}
//
// Export renders a document as JSON or YAML. Import expands glob patterns
// (including ** for recursive matching), decodes every matching JSON or YAML
// file, checks each against the document JSON Schema and merges them into
// one request body that is applied as a single batch.
//
// Basic export example:
//
//	data, err := portability.Export(mgr.Document(), portability.ExportOptions{Format: portability.FormatYAML})
//
// Basic import example:
//
//	bundle, err := portability.Load([]string{"conf.d/**/*.yaml"}, portability.LoadOptions{Registry: reg})
//	res, err := portability.Apply(ctx, mgr, bundle)
package portability
