package bunny

// SpanNamer defines how operation names are transformed into span names.
type SpanNamer interface {
	Name(operation string) string
}

// DefaultNamer returns operation names unchanged.
// This complies with OpenTelemetry semantic conventions which recommend
// using the raw operation name without service prefixes.
type DefaultNamer struct{}

// Name returns the operation name as is.
func (DefaultNamer) Name(operation string) string {
	return operation
}

// NameMessaging returns a compliant span name for a messaging operation:
// "destination verb". Example: "orders publish", "orders.created consumer".
func NameMessaging(destination, verb string) string {
	return destination + " " + verb
}

// NameHTTP returns a compliant span name for an HTTP request: "METHOD /route".
// Example: "GET /users/{id}"
func NameHTTP(method, route string) string {
	return method + " " + route
}

// NameDB returns a compliant span name for a database operation: "verb table".
// Example: "SELECT users"
func NameDB(verb, table string) string {
	return verb + " " + table
}
