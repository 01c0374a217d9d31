package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"cashbook/internal/budget"
	"cashbook/internal/core"
	"cashbook/internal/ledger"
	applog "cashbook/internal/log"
	"cashbook/internal/services"

	"github.com/shopspring/decimal"
)

// Error kinds returned in the "kind" field of error bodies.
const (
	KindValidation   = "validation"
	KindNotFound     = "not_found"
	KindConflict     = "conflict"
	KindNotDue       = "not_due"
	KindPartialApply = "partial_apply"
	KindNoConversion = "no_conversion_path"
	KindInternal     = "internal"
)

type errorBody struct {
	Error       string           `json:"error"`
	Kind        string           `json:"kind"`
	Transaction *transactionJSON `json:"transaction,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// classifyError maps a service error onto a status and error kind.
func classifyError(err error) (int, string) {
	var verr *validationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, KindValidation
	case errors.Is(err, core.ErrPartialApply):
		return http.StatusInternalServerError, KindPartialApply
	case errors.Is(err, core.ErrNotDue):
		return http.StatusConflict, KindNotDue
	case errors.Is(err, core.ErrDuplicateBudget), errors.Is(err, core.ErrStaleRule):
		return http.StatusConflict, KindConflict
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, KindNotFound
	case errors.Is(err, core.ErrNoConversionPath):
		return http.StatusUnprocessableEntity, KindNoConversion
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidRate),
		errors.Is(err, core.ErrInvalidCurrency),
		errors.Is(err, core.ErrCurrencyMismatch),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidInterval),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrMissingOwner),
		errors.Is(err, core.ErrMissingCategory),
		errors.Is(err, core.ErrMissingAccount):
		return http.StatusUnprocessableEntity, KindValidation
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

// writeError logs err and writes its JSON body. Internal errors are not
// echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classifyError(err)
	body := errorBody{Error: err.Error(), Kind: kind}

	var partial *core.PartialApplyError
	if errors.As(err, &partial) {
		tx := newTransactionJSON(partial.Transaction)
		body.Transaction = &tx
	}
	if kind == KindInternal {
		body.Error = "internal server error"
	}

	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentHTTP)
	switch {
	case status >= http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), "Request failed",
			applog.FieldErrorType, applog.ErrorTypeInternal,
			applog.FieldError, err)
	case kind == KindNotDue:
		logger.DebugContext(r.Context(), "Recurring rule not due", applog.FieldError, err)
	default:
		logger.WarnContext(r.Context(), "Request rejected",
			applog.FieldErrorType, errorType(kind),
			applog.FieldError, err)
	}
	writeJSON(w, status, body)
}

func errorType(kind string) string {
	switch kind {
	case KindNotFound:
		return applog.ErrorTypeNotFound
	case KindConflict:
		return applog.ErrorTypeConflict
	default:
		return applog.ErrorTypeValidation
	}
}

// money renders amounts with two decimals.
func money(d decimal.Decimal) string {
	return d.StringFixed(core.Scale)
}

type transactionJSON struct {
	ID         string  `json:"id"`
	AccountID  string  `json:"account_id"`
	CategoryID *string `json:"category_id"`
	Kind       string  `json:"kind"`
	Amount     string  `json:"amount"`
	Currency   string  `json:"currency"`
	Date       string  `json:"date"`
	Note       string  `json:"note,omitempty"`
}

func newTransactionJSON(tx core.Transaction) transactionJSON {
	return transactionJSON{
		ID:         tx.ID,
		AccountID:  tx.AccountID,
		CategoryID: tx.Category.Ptr(),
		Kind:       string(tx.Kind),
		Amount:     money(tx.Amount),
		Currency:   string(tx.Currency),
		Date:       tx.Date.String(),
		Note:       tx.Note,
	}
}

type budgetJSON struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
	Month      string `json:"month"`
	Limit      string `json:"limit"`
	Currency   string `json:"currency"`
}

func newBudgetJSON(b core.Budget) budgetJSON {
	return budgetJSON{
		ID:         b.ID,
		CategoryID: b.CategoryID,
		Month:      b.Month.MonthKey(),
		Limit:      money(b.Limit),
		Currency:   string(b.Currency),
	}
}

type ruleJSON struct {
	ID          string  `json:"id"`
	AccountID   string  `json:"account_id"`
	CategoryID  *string `json:"category_id"`
	Kind        string  `json:"kind"`
	Amount      string  `json:"amount"`
	Currency    string  `json:"currency"`
	Interval    string  `json:"interval"`
	AnchorDate  string  `json:"anchor_date"`
	NextRunDate string  `json:"next_run_date"`
	Note        string  `json:"note,omitempty"`
}

func newRuleJSON(r core.RecurringRule) ruleJSON {
	return ruleJSON{
		ID:          r.ID,
		AccountID:   r.AccountID,
		CategoryID:  r.Category.Ptr(),
		Kind:        string(r.Kind),
		Amount:      money(r.Amount),
		Currency:    string(r.Currency),
		Interval:    string(r.Interval),
		AnchorDate:  r.AnchorDate.String(),
		NextRunDate: r.NextRunDate.String(),
		Note:        r.Note,
	}
}

type evaluationJSON struct {
	Budget      budgetJSON `json:"budget"`
	Spent       string     `json:"spent"`
	Limit       string     `json:"limit"`
	Currency    string     `json:"currency"`
	Pct         int64      `json:"pct"`
	Status      string     `json:"status"`
	Approximate bool       `json:"approximate"`
}

func newEvaluationJSON(ev budget.Evaluation) evaluationJSON {
	return evaluationJSON{
		Budget:      newBudgetJSON(ev.Budget),
		Spent:       money(ev.Spent.Amount),
		Limit:       money(ev.Limit.Amount),
		Currency:    string(ev.Limit.Currency),
		Pct:         ev.Pct,
		Status:      string(ev.Status),
		Approximate: ev.Approximate,
	}
}

type chartPointJSON struct {
	BudgetID    string `json:"budget_id"`
	CategoryID  string `json:"category_id"`
	Spent       string `json:"spent"`
	Limit       string `json:"limit"`
	Currency    string `json:"currency"`
	Approximate bool   `json:"approximate"`
}

type reportRowJSON struct {
	Group    string `json:"group"`
	Label    string `json:"label"`
	Currency string `json:"currency"`
	Income   string `json:"income"`
	Expense  string `json:"expense"`
	Net      string `json:"net"`
	Count    int    `json:"count"`
}

type reportJSON struct {
	Window      string          `json:"window"`
	GroupBy     string          `json:"group_by"`
	Rows        []reportRowJSON `json:"rows"`
	Skipped     int             `json:"skipped"`
	Approximate bool            `json:"approximate"`
	Unconverted int             `json:"unconverted"`
}

func newReportJSON(rep ledger.Report) reportJSON {
	out := reportJSON{
		Window:      rep.Window.String(),
		GroupBy:     string(rep.GroupBy),
		Rows:        []reportRowJSON{},
		Skipped:     rep.Skipped,
		Approximate: rep.Approximate,
		Unconverted: rep.Unconverted,
	}
	for _, row := range rep.Rows() {
		out.Rows = append(out.Rows, reportRowJSON{
			Group:    row.Key.Group,
			Label:    row.Label,
			Currency: string(row.Key.Currency),
			Income:   money(row.Income),
			Expense:  money(row.Expense),
			Net:      money(row.Net),
			Count:    row.Count,
		})
	}
	return out
}

type searchJSON struct {
	Entity       string            `json:"entity"`
	Transactions []transactionJSON `json:"transactions,omitempty"`
	Budgets      []budgetJSON      `json:"budgets,omitempty"`
	Rules        []ruleJSON        `json:"rules,omitempty"`
	Total        int               `json:"total"`
	Page         int               `json:"page"`
	PageSize     int               `json:"page_size"`
	Pages        int               `json:"pages"`
}

func newSearchJSON(res services.SearchResult) searchJSON {
	out := searchJSON{
		Entity:   string(res.Entity),
		Total:    res.Total,
		Page:     res.Page,
		PageSize: res.PageSize,
		Pages:    res.Pages,
	}
	for _, tx := range res.Transactions {
		out.Transactions = append(out.Transactions, newTransactionJSON(tx))
	}
	for _, b := range res.Budgets {
		out.Budgets = append(out.Budgets, newBudgetJSON(b))
	}
	for _, r := range res.Rules {
		out.Rules = append(out.Rules, newRuleJSON(r))
	}
	return out
}

type rateJSON struct {
	Base   string `json:"base"`
	Target string `json:"target"`
	Rate   string `json:"rate"`
}

func newRatesJSON(rates []core.FxRate) []rateJSON {
	out := make([]rateJSON, 0, len(rates))
	for _, r := range rates {
		out = append(out, rateJSON{Base: string(r.Base), Target: string(r.Target), Rate: r.Rate.String()})
	}
	return out
}
