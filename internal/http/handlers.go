package http

import (
	"errors"
	"net/http"
	"strings"

	"cashbook/internal/core"
	"cashbook/internal/ledger"
	applog "cashbook/internal/log"
	"cashbook/internal/search"
)

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	window, err := ledger.ParseWindow(q.Get("window"), q.Get("month"), q.Get("start"), q.Get("end"), core.DateOf(s.today()))
	if err != nil {
		writeError(w, r, invalid("window: %v", err))
		return
	}
	by, err := ledger.ParseGroupBy(q.Get("group"))
	if err != nil {
		writeError(w, r, invalid("group: %v", err))
		return
	}
	target, err := parseOptionalCurrency(q.Get("currency"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.app.Aggregate(r.Context(), owner, window, by, target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReportJSON(report))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	entity, err := search.ParseEntity(q.Get("entity"))
	if err != nil {
		writeError(w, r, invalid("entity: %v", err))
		return
	}
	page, err := parsePage(q.Get("page"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.app.Search(r.Context(), owner, entity, q.Get("q"), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSearchJSON(res))
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	amount, err := core.ParseAmount(q.Get("amount"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	from, err := core.ParseCurrency(q.Get("from"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := core.ParseCurrency(q.Get("to"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Without a path the amount comes back unchanged and flagged.
	converted, err := s.app.Convert(r.Context(), owner, amount, from, to)
	approximate := errors.Is(err, core.ErrNoConversionPath)
	if err != nil && !approximate {
		writeError(w, r, err)
		return
	}
	if approximate {
		converted = amount
		applog.FromContext(r.Context()).WithComponent(applog.ComponentFX).WarnContext(r.Context(), "No conversion path",
			applog.FieldOwnerID, owner,
			"from", string(from),
			"to", string(to))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"amount":      money(amount),
		"from":        string(from),
		"to":          string(to),
		"converted":   money(converted),
		"approximate": approximate,
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := req.toTransaction(owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tx, err = s.app.CreateTransaction(r.Context(), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentHTTP).InfoContext(r.Context(), "Transaction created",
		applog.NewFields().WithOwner(owner).WithOperation("create_transaction").WithMoney(money(tx.Amount), string(tx.Currency)).Attr()...)
	writeJSON(w, http.StatusCreated, newTransactionJSON(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.app.DeleteTransaction(r.Context(), owner, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRates(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rates, err := s.app.ListRates(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source": string(s.app.Rates().Source()),
		"rates":  newRatesJSON(rates),
	})
}

// handlePutRates stores explicit rates, or the USD and KES pair when the
// body carries one.
func (s *Server) handlePutRates(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req fxRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var pending []core.FxRate
	if req.Pair != nil {
		pair, err := req.Pair.toPair()
		if err != nil {
			writeError(w, r, err)
			return
		}
		rates, err := pair.Rates(owner)
		if err != nil {
			writeError(w, r, err)
			return
		}
		pending = append(pending, rates...)
	}
	for _, rr := range req.Rates {
		rate, err := rr.toRate(owner)
		if err != nil {
			writeError(w, r, err)
			return
		}
		pending = append(pending, rate)
	}
	if err := s.app.UpsertRates(r.Context(), owner, pending); err != nil {
		writeError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).WithComponent(applog.ComponentFX).InfoContext(r.Context(), "Exchange rates updated",
		applog.FieldOwnerID, owner,
		"count", len(pending))
	writeJSON(w, http.StatusOK, map[string]any{"rates": newRatesJSON(pending)})
}

func trimmedPathID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", invalid("id is required")
	}
	return id, nil
}
