package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finassist/internal/core"
	"finassist/internal/storage"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// --- accounts ---

type createAccountRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Currency string `json:"currency"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account := core.Account{
		Name:     strings.TrimSpace(req.Name),
		Type:     core.AccountType(req.Type),
		Currency: strings.ToUpper(strings.TrimSpace(req.Currency)),
		IsActive: true,
	}
	if account.Currency == "" {
		account.Currency = "EUR"
	}
	if err := account.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.svc.Store().CreateAccount(r.Context(), account)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	accounts, err := s.svc.Store().ListAccounts(r.Context(), activeOnly)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if accounts == nil {
		accounts = []core.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	account, err := s.svc.Store().GetAccount(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleDeactivateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := s.svc.Store().DeactivateAccount(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	s.invalidateReports()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := s.svc.Store().DeleteAccount(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	s.invalidateReports()
	w.WriteHeader(http.StatusNoContent)
}

// --- snapshots ---

type createSnapshotRequest struct {
	AccountID       int64   `json:"account_id"`
	Year            int     `json:"year"`
	Month           int     `json:"month"`
	StartingBalance float64 `json:"starting_balance"`
	EndingBalance   float64 `json:"ending_balance"`
	TotalIncome     float64 `json:"total_income"`
	TotalExpense    float64 `json:"total_expense"`
}

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req createSnapshotRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	snap := core.Snapshot{
		AccountID:       req.AccountID,
		Year:            req.Year,
		Month:           req.Month,
		StartingBalance: req.StartingBalance,
		EndingBalance:   req.EndingBalance,
		TotalIncome:     req.TotalIncome,
		TotalExpense:    req.TotalExpense,
	}
	if err := snap.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.svc.CreateSnapshot(r.Context(), snap)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.invalidateReports()
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateSnapshot(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month")
		return
	}
	period := core.Period{Year: year, Month: month}
	if err := period.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var patch core.SnapshotPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	updated, err := s.svc.UpdateSnapshot(r.Context(), accountID, period, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "no snapshot for account and period")
		return
	}
	s.invalidateReports()
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleListAccountSnapshots(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var start, end *core.Period
	if v := r.URL.Query().Get("start"); v != "" {
		p, err := parsePeriodParam(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start period, want YYYY-MM")
			return
		}
		start = &p
	}
	if v := r.URL.Query().Get("end"); v != "" {
		p, err := parsePeriodParam(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end period, want YYYY-MM")
			return
		}
		end = &p
	}

	snaps, err := s.svc.Store().ListSnapshotsForAccount(r.Context(), accountID, start, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if snaps == nil {
		snaps = []core.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleListYearSnapshots(w http.ResponseWriter, r *http.Request) {
	year, ok := queryYear(w, r)
	if !ok {
		return
	}

	snaps, err := s.svc.Store().ListSnapshotsForYear(r.Context(), year)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if snaps == nil {
		snaps = []core.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleRecentSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 12
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	var accountID *int64
	if v := r.URL.Query().Get("account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid account_id")
			return
		}
		accountID = &id
	}

	snaps, err := s.svc.Store().ListRecentSnapshots(r.Context(), accountID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if snaps == nil {
		snaps = []core.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func parsePeriodParam(v string) (core.Period, error) {
	t, err := time.Parse("2006-01", v)
	if err != nil {
		return core.Period{}, err
	}
	return core.PeriodOf(t), nil
}

// --- transactions ---

type transactionRequest struct {
	AccountID   int64   `json:"account_id"`
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Currency    string  `json:"currency"`
}

func (req transactionRequest) toTransaction(w http.ResponseWriter) (core.Transaction, bool) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date, want YYYY-MM-DD")
		return core.Transaction{}, false
	}

	tx := core.Transaction{
		AccountID:   req.AccountID,
		Date:        date,
		Amount:      req.Amount,
		Category:    strings.TrimSpace(req.Category),
		Description: strings.TrimSpace(req.Description),
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
	}
	if err := tx.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return core.Transaction{}, false
	}
	return tx, true
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tx, ok := req.toTransaction(w)
	if !ok {
		return
	}

	created, err := s.svc.AddTransaction(r.Context(), tx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.invalidateReports()
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleAddTransactionsBulk(w http.ResponseWriter, r *http.Request) {
	var reqs []transactionRequest
	if !decodeJSON(w, r, &reqs) {
		return
	}
	if len(reqs) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "empty transaction list")
		return
	}

	txs := make([]core.Transaction, 0, len(reqs))
	for _, req := range reqs {
		tx, ok := req.toTransaction(w)
		if !ok {
			return
		}
		txs = append(txs, tx)
	}

	created, err := s.svc.AddTransactionsBulk(r.Context(), txs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.invalidateReports()
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	deleted, err := s.svc.DeleteTransaction(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	s.invalidateReports()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	var filter storage.TransactionFilter

	q := r.URL.Query()
	if v := q.Get("account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid account_id")
			return
		}
		filter.AccountID = &id
	}
	filter.Category = strings.TrimSpace(q.Get("category"))
	if v := q.Get("start"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start date, want YYYY-MM-DD")
			return
		}
		filter.StartDate = &t
	}
	if v := q.Get("end"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end date, want YYYY-MM-DD")
			return
		}
		filter.EndDate = &t
	}

	txs, err := s.svc.Store().ListTransactions(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// --- categories ---

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	var typ *core.CategoryType
	if v := r.URL.Query().Get("type"); v != "" {
		t := core.CategoryType(v)
		if !t.Valid() {
			writeError(w, http.StatusBadRequest, "invalid category type, want income or expense")
			return
		}
		typ = &t
	}

	cats, err := s.svc.Store().ListCategories(r.Context(), typ)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}
