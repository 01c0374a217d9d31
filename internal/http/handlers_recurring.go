package http

import (
	"net/http"

	"cashbook/internal/core"
	applog "cashbook/internal/log"
)

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := req.toRule(owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rule, err = s.app.CreateRule(r.Context(), rule); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRuleJSON(rule))
}

// handleApplyRule posts one occurrence of a rule as of ?date= (default
// today). A rule not yet due answers 409 with kind not_due.
func (s *Server) handleApplyRule(w http.ResponseWriter, r *http.Request) {
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
	ref, err := parseRefDate(r.URL.Query().Get("date"), core.DateOf(s.today()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	tx, rule, err := s.app.ApplyRecurring(r.Context(), owner, id, ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRecurring).InfoContext(r.Context(), "Recurring rule applied",
		applog.FieldOwnerID, owner,
		applog.FieldRuleID, rule.ID,
		applog.FieldTransactionID, tx.ID,
		applog.FieldNextRun, rule.NextRunDate.String())
	writeJSON(w, http.StatusCreated, map[string]any{
		"transaction": newTransactionJSON(tx),
		"rule":        newRuleJSON(rule),
	})
}
