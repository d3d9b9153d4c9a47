// Package cli implements the cfgd command line: the serve command that
// assembles and runs the configuration server, and client commands that
// talk to its admin API.
//
// Commands:
//
//	serve      Start the server
//	get        Show the configuration, one type, or one object
//	set        Create or update objects
//	delete     Delete an object
//	restart    Reload from durable state
//	status     Show the lifecycle state
//	export     Export the configuration as JSON or YAML
//	import     Apply documents to a running server
//	validate   Check documents offline
//	schema     Print the document JSON Schema or the OpenAPI description
//	watch      Stream change events
//	version    Show version information
package cli
