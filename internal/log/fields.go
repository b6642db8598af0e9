package log

// Field names shared by every component.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldSource      = "source"
	FieldNow         = "now"
	FieldMonth       = "month"
	FieldHorizon     = "horizon"
	FieldRecordCount = "record_count"
	FieldSeriesCount = "series_count"
	FieldWarnings    = "warnings"
	FieldCategories  = "categories"
	FieldRecordID    = "record_id"
	FieldField       = "field"
	FieldReason      = "reason"
	FieldCacheHit    = "cache_hit"
	FieldFingerprint = "fingerprint"
)

const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentEngine   = "engine"
	ComponentForecast = "forecast"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentSource   = "source"
	ComponentCache    = "cache"
	ComponentBackend  = "backend"
	ComponentCLI      = "cli"
)

const (
	OpRead     = "read"
	OpUpsert   = "upsert"
	OpCompute  = "compute"
	OpParse    = "parse"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpMigrate  = "migrate"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// Fields is a small builder for structured log attributes.
type Fields map[string]any

func NewFields() Fields {
	return make(Fields)
}

func (f Fields) WithComponent(component string) Fields {
	f[FieldComponent] = component
	return f
}

func (f Fields) WithRequestID(requestID string) Fields {
	f[FieldRequestID] = requestID
	return f
}

func (f Fields) WithClientIP(ip string) Fields {
	f[FieldClientIP] = ip
	return f
}

// WithError is a no-op for a nil error.
func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f Fields) WithOperation(op string) Fields {
	f[FieldOperation] = op
	return f
}

// WithReport adds the headline numbers of a computed report.
func (f Fields) WithReport(now string, records, series, categories, warnings int) Fields {
	f[FieldNow] = now
	f[FieldRecordCount] = records
	f[FieldSeriesCount] = series
	f[FieldCategories] = categories
	f[FieldWarnings] = warnings
	return f
}

func (f Fields) WithHTTPRequest(method, path, query string) Fields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	return f
}

func (f Fields) WithHTTPResponse(statusCode int, durationMs int64) Fields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice flattens the fields into slog key/value pairs.
func (f Fields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
