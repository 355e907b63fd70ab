package amqp

import (
	"runtime"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Code attribute keys per OTel semantic conventions.
const (
	attrCodeFunction  = "code.function"
	attrCodeNamespace = "code.namespace"
	attrCodeFilepath  = "code.filepath"
	attrCodeLineno    = "code.lineno"
)

// callerAttributes resolves the call site skip frames above the caller of
// this function. Returns nil when the call site cannot be resolved; absence
// of code attributes is allowed, never an error.
func callerAttributes(skip int) []attribute.KeyValue {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return nil
	}

	attrs := make([]attribute.KeyValue, 0, 4)
	attrs = append(attrs,
		attribute.String(attrCodeFilepath, file),
		attribute.Int(attrCodeLineno, line),
	)

	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return attrs
	}

	// Full name looks like "module/pkg.(*Type).Method"; split on the last
	// dot so the namespace keeps the receiver type.
	name := fn.Name()
	if idx := strings.LastIndex(name, "."); idx > 0 {
		attrs = append(attrs,
			attribute.String(attrCodeNamespace, name[:idx]),
			attribute.String(attrCodeFunction, name[idx+1:]),
		)
	} else {
		attrs = append(attrs, attribute.String(attrCodeFunction, name))
	}

	return attrs
}
