// Package admin provides the REST API for managing configuration objects at
// runtime.
//
// Endpoints:
//
//	GET    /configuration/               - Whole configuration document
//	GET    /configuration/{type}/        - Every object of one type
//	GET    /configuration/{type}/{name}  - One named object
//	POST   /configuration                - Create or update a batch of objects
//	DELETE /configuration/{type}/{name}  - Delete an unreferenced object
//	POST   /service/restart              - Reload from durable state
//	GET    /service/status               - Lifecycle state
//	GET    /events                       - WebSocket change stream
//	GET    /schema.json                  - Document JSON Schema
//	GET    /openapi.json                 - OpenAPI description of this API
//	GET    /health                       - Health check
//	GET    /metrics                      - Prometheus metrics
//
// Every failure is answered with {"status": <http>, "Code": "CWLNAnnnn",
// "Message": "..."}.
//
// Example curl commands:
//
//	# Create a message hub and a queue
//	curl -X POST http://localhost:9089/configuration \
//	  -d '{"MessageHub":{"hub":{"Description":"main"}},"Queue":{"orders":{"MaxMessages":10000}}}'
//
//	# Read one back
//	curl http://localhost:9089/configuration/Queue/orders
package admin
