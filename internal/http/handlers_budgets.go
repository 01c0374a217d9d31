package http

import (
	"net/http"

	"cashbook/internal/budget"
	"cashbook/internal/core"
)

// handleBudgetStatus evaluates the month's budgets. With ?currency= every
// budget is also projected into that currency for charting.
func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	month := core.DateOf(s.today()).MonthStart()
	if v := q.Get("month"); v != "" {
		if month, err = core.ParseMonth(v); err != nil {
			writeError(w, r, err)
			return
		}
	}
	to, err := parseOptionalCurrency(q.Get("currency"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	evals, err := s.app.EvaluateBudgets(r.Context(), owner, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := map[string]any{
		"month":   month.MonthKey(),
		"budgets": evaluationsJSON(evals),
	}
	if to != "" {
		points, err := s.app.BudgetChart(r.Context(), owner, month, to)
		if err != nil {
			writeError(w, r, err)
			return
		}
		chart := make([]chartPointJSON, 0, len(points))
		for _, p := range points {
			chart = append(chart, chartPointJSON{
				BudgetID:    p.BudgetID,
				CategoryID:  p.CategoryID,
				Spent:       money(p.Spent),
				Limit:       money(p.Limit),
				Currency:    string(p.Currency),
				Approximate: p.Approximate,
			})
		}
		out["chart"] = chart
	}
	writeJSON(w, http.StatusOK, out)
}

func evaluationsJSON(evals []budget.Evaluation) []evaluationJSON {
	out := make([]evaluationJSON, 0, len(evals))
	for _, ev := range evals {
		out = append(out, newEvaluationJSON(ev))
	}
	return out
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := req.toBudget(owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if b, err = s.app.CreateBudget(r.Context(), b); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBudgetJSON(b))
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := trimmedPathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req budgetUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := req.toUpdate()
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.app.UpdateBudget(r.Context(), owner, id, u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBudgetJSON(b))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := trimmedPathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.app.DeleteBudget(r.Context(), owner, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
