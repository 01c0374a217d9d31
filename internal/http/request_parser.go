package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cashbook/internal/budget"
	"cashbook/internal/core"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// HeaderOwnerID names the caller's owner id on every /api request.
const HeaderOwnerID = "X-Owner-ID"

const maxBodyBytes = 1 << 20

var (
	validate        = newValidator()
	errMissingOwner = fmt.Errorf("%w: %s header is required", core.ErrMissingOwner, HeaderOwnerID)
	nonBlank        = regexp.MustCompile(`\S`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("yearmonth", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01", fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return nonBlank.MatchString(fl.Field().String())
	})
	return v
}

// validationError carries every field problem of one payload.
type validationError struct {
	problems []string
}

func (e *validationError) Error() string {
	return "invalid input: " + strings.Join(e.problems, "; ")
}

func invalid(format string, args ...any) error {
	return &validationError{problems: []string{fmt.Sprintf(format, args...)}}
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fieldErrorToString(fe))
	}
	return &validationError{problems: problems}
}

func fieldErrorToString(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", e.Field())
	case "yearmonth":
		return fmt.Sprintf("%s must be in YYYY-MM format", e.Field())
	case "isodate":
		return fmt.Sprintf("%s must be in YYYY-MM-DD format", e.Field())
	case "len":
		return fmt.Sprintf("%s must have length %s", e.Field(), e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", e.Field(), e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", e.Field(), e.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", e.Field(), e.Tag())
	}
}

// decodeJSON reads a single JSON object from the body into dst and
// validates it.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return invalid("request body is empty")
		}
		return invalid("malformed JSON: %v", err)
	}
	if dec.More() {
		return invalid("request body must hold a single JSON object")
	}
	return validateStruct(dst)
}

func ownerFrom(r *http.Request) (string, error) {
	owner := strings.TrimSpace(r.Header.Get(HeaderOwnerID))
	if owner == "" {
		return "", errMissingOwner
	}
	return owner, nil
}

// parsePage reads a zero-based page index; empty means 0.
func parsePage(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	p, err := strconv.Atoi(s)
	if err != nil || p < 0 {
		return 0, invalid("page must be a non-negative integer")
	}
	return p, nil
}

// parseOptionalCurrency returns "" for an empty value.
func parseOptionalCurrency(s string) (core.CurrencyCode, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return core.ParseCurrency(s)
}

// parseRefDate reads a YYYY-MM-DD value, defaulting to today.
func parseRefDate(s string, today core.Date) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return today, nil
	}
	return core.ParseDate(s)
}

func categoryRef(id *string) core.CategoryRef {
	if id == nil || strings.TrimSpace(*id) == "" {
		return core.NoCategory()
	}
	return core.CategoryID(strings.TrimSpace(*id))
}

type transactionRequest struct {
	AccountID  string  `json:"account_id" validate:"required,notblank"`
	CategoryID *string `json:"category_id"`
	Kind       string  `json:"kind" validate:"required,oneof=income expense"`
	Amount     string  `json:"amount" validate:"required"`
	Currency   string  `json:"currency" validate:"required,len=3"`
	Date       string  `json:"date" validate:"required,isodate"`
	Note       string  `json:"note" validate:"max=500"`
}

func (req transactionRequest) toTransaction(owner string) (core.Transaction, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	currency, err := core.ParseCurrency(req.Currency)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		OwnerID:   owner,
		AccountID: strings.TrimSpace(req.AccountID),
		Category:  categoryRef(req.CategoryID),
		Kind:      core.Kind(req.Kind),
		Amount:    amount,
		Currency:  currency,
		Date:      date,
		Note:      req.Note,
	}, nil
}

type budgetRequest struct {
	CategoryID string `json:"category_id" validate:"required,notblank"`
	Month      string `json:"month" validate:"required,yearmonth"`
	Limit      string `json:"limit" validate:"required"`
	Currency   string `json:"currency" validate:"required,len=3"`
}

func (req budgetRequest) toBudget(owner string) (core.Budget, error) {
	limit, err := core.ParseAmount(req.Limit)
	if err != nil {
		return core.Budget{}, err
	}
	currency, err := core.ParseCurrency(req.Currency)
	if err != nil {
		return core.Budget{}, err
	}
	month, err := core.ParseMonth(req.Month)
	if err != nil {
		return core.Budget{}, err
	}
	return core.Budget{
		OwnerID:    owner,
		CategoryID: strings.TrimSpace(req.CategoryID),
		Month:      month,
		Limit:      limit,
		Currency:   currency,
	}, nil
}

type budgetUpdateRequest struct {
	Limit    string `json:"limit" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3"`
}

func (req budgetUpdateRequest) toUpdate() (budget.Update, error) {
	limit, err := core.ParseAmount(req.Limit)
	if err != nil {
		return budget.Update{}, err
	}
	currency, err := core.ParseCurrency(req.Currency)
	if err != nil {
		return budget.Update{}, err
	}
	return budget.Update{Limit: limit, Currency: currency}, nil
}

type ruleRequest struct {
	AccountID   string  `json:"account_id" validate:"required,notblank"`
	CategoryID  *string `json:"category_id"`
	Kind        string  `json:"kind" validate:"required,oneof=income expense"`
	Amount      string  `json:"amount" validate:"required"`
	Currency    string  `json:"currency" validate:"required,len=3"`
	Interval    string  `json:"interval" validate:"required,oneof=daily weekly monthly quarterly yearly"`
	NextRunDate string  `json:"next_run_date" validate:"required,isodate"`
	AnchorDate  string  `json:"anchor_date" validate:"omitempty,isodate"`
	Note        string  `json:"note" validate:"max=500"`
}

func (req ruleRequest) toRule(owner string) (core.RecurringRule, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.RecurringRule{}, err
	}
	currency, err := core.ParseCurrency(req.Currency)
	if err != nil {
		return core.RecurringRule{}, err
	}
	next, err := core.ParseDate(req.NextRunDate)
	if err != nil {
		return core.RecurringRule{}, err
	}
	var anchor core.Date
	if req.AnchorDate != "" {
		if anchor, err = core.ParseDate(req.AnchorDate); err != nil {
			return core.RecurringRule{}, err
		}
	}
	return core.RecurringRule{
		OwnerID:     owner,
		AccountID:   strings.TrimSpace(req.AccountID),
		Category:    categoryRef(req.CategoryID),
		Kind:        core.Kind(req.Kind),
		Amount:      amount,
		Currency:    currency,
		Interval:    core.Interval(req.Interval),
		NextRunDate: next,
		AnchorDate:  anchor,
		Note:        req.Note,
	}, nil
}

type rateRequest struct {
	Base   string `json:"base" validate:"required,len=3"`
	Target string `json:"target" validate:"required,len=3"`
	Rate   string `json:"rate" validate:"required"`
}

// fxRequest sets either explicit rates or the legacy USD and KES pair.
type fxRequest struct {
	Rates []rateRequest `json:"rates" validate:"required_without=Pair,dive"`
	Pair  *pairRequest  `json:"pair" validate:"required_without=Rates"`
}

type pairRequest struct {
	Base      string `json:"base" validate:"omitempty,len=3"`
	USDToBase string `json:"usd_to_base" validate:"required"`
	KESToBase string `json:"kes_to_base" validate:"required"`
}

func (req rateRequest) toRate(owner string) (core.FxRate, error) {
	base, err := core.ParseCurrency(req.Base)
	if err != nil {
		return core.FxRate{}, err
	}
	target, err := core.ParseCurrency(req.Target)
	if err != nil {
		return core.FxRate{}, err
	}
	rate, err := parseRate(req.Rate)
	if err != nil {
		return core.FxRate{}, err
	}
	return core.FxRate{OwnerID: owner, Base: base, Target: target, Rate: rate}, nil
}

func (req pairRequest) toPair() (core.PairRates, error) {
	base, err := parseOptionalCurrency(req.Base)
	if err != nil {
		return core.PairRates{}, err
	}
	usd, err := parseRate(req.USDToBase)
	if err != nil {
		return core.PairRates{}, err
	}
	kes, err := parseRate(req.KESToBase)
	if err != nil {
		return core.PairRates{}, err
	}
	return core.PairRates{Base: base, USDToBase: usd, KESToBase: kes}, nil
}

// parseRate keeps full precision, unlike amounts which round to cents.
func parseRate(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q", core.ErrInvalidRate, s)
	}
	return d, nil
}
