package log

import "log/slog"

// Field names shared by every component.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"

	FieldOwnerID       = "owner_id"
	FieldTransactionID = "transaction_id"
	FieldBudgetID      = "budget_id"
	FieldRuleID        = "rule_id"
	FieldCategoryID    = "category_id"
	FieldMonth         = "month"
	FieldAmount        = "amount"
	FieldCurrency      = "currency"
	FieldNextRun       = "next_run_date"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentBudget    = "budget"
	ComponentRecurring = "recurring"
	ComponentFX        = "fx"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
)

const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpApply    = "apply"
	OpEvaluate = "evaluate"
	OpConvert  = "convert"
	OpPublish  = "publish"
	OpExport   = "export"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeConflict      = "conflict_error"
	ErrorTypeInternal      = "internal_error"
)

// Fields is an ordered builder for structured log attributes.
type Fields []any

func NewFields() Fields {
	return make(Fields, 0, 8)
}

func (f Fields) add(k string, v any) Fields { return append(f, k, v) }

func (f Fields) WithComponent(c string) Fields  { return f.add(FieldComponent, c) }
func (f Fields) WithRequestID(id string) Fields { return f.add(FieldRequestID, id) }
func (f Fields) WithClientIP(ip string) Fields  { return f.add(FieldClientIP, ip) }
func (f Fields) WithOperation(op string) Fields { return f.add(FieldOperation, op) }
func (f Fields) WithOwner(owner string) Fields  { return f.add(FieldOwnerID, owner) }

func (f Fields) WithError(err error) Fields {
	if err == nil {
		return f
	}
	return f.add(FieldError, err.Error())
}

// WithMoney adds amount and currency.
func (f Fields) WithMoney(amount, currency string) Fields {
	return f.add(FieldAmount, amount).add(FieldCurrency, currency)
}

func (f Fields) WithHTTPRequest(method, path, query, userAgent string) Fields {
	return f.add(FieldMethod, method).add(FieldPath, path).add(FieldQuery, query).add(FieldUserAgent, userAgent)
}

func (f Fields) WithHTTPResponse(statusCode int, durationMs int64) Fields {
	return f.add(FieldStatusCode, statusCode).add(FieldDuration, durationMs).add(FieldSuccess, statusCode < 400)
}

// Attr returns the fields as slog arguments.
func (f Fields) Attr() []any {
	return []any(f)
}

// LevelForStatus maps an HTTP status to the level its completion is logged at.
func LevelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
