package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/smartdevs17/xltoken-dashboard/internal/analytics"
	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/internal/realtime"
	"github.com/smartdevs17/xltoken-dashboard/internal/view"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// Transaction Handlers

// listTransactionsHandler renders one page of the filtered log
func (s *HTTPServer) listTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := s.config.DefaultFilter
	if raw := q.Get("filter"); raw != "" {
		parsed, err := view.ParseTimeRange(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid filter", err)
			return
		}
		filter = parsed
	}

	size := s.config.DefaultPageSize
	if raw := q.Get("page_size"); raw != "" {
		parsed, err := view.ParsePageSize(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid page size", err)
			return
		}
		size = parsed
	}

	page := 1
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "Page must be a positive integer", err)
			return
		}
		page = n
	}

	pv := view.Render(s.deps.Store.Entries(), filter, q.Get("q"), size, page, s.now(), s.config.Location)
	s.writeJSON(w, http.StatusOK, pv)
}

// histogramHandler returns daily counts for a month plus the selectable months
func (s *HTTPServer) histogramHandler(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	entries := s.deps.Store.Entries()

	month := analytics.MonthOf(now, s.config.Location)
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := analytics.ParseYearMonth(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid month", err)
			return
		}
		month = parsed
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"histogram":        analytics.HistogramForMonth(entries, month.Year, month.Month, s.config.Location),
		"available_months": analytics.AvailableMonths(entries, now, s.config.Location),
	})
}

// summaryHandler returns the revenue and transaction cards
func (s *HTTPServer) summaryHandler(w http.ResponseWriter, r *http.Request) {
	statsRange := s.config.StatsRange
	if raw := r.URL.Query().Get("range"); raw != "" {
		switch analytics.StatsRange(raw) {
		case analytics.StatsRangeMonth, analytics.StatsRangeAll:
			statsRange = analytics.StatsRange(raw)
		default:
			s.writeError(w, http.StatusBadRequest, "Range must be month or all", nil)
			return
		}
	}

	summary := analytics.Summarize(s.deps.Store.Entries(), statsRange, s.config.Price, s.now(), s.config.Location)
	symbol := s.config.CurrencySymbol

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": summary,
		"formatted": map[string]string{
			"total_revenue":     analytics.FormatCurrency(summary.TotalRevenue, symbol),
			"month_revenue":     analytics.FormatCurrency(summary.MonthRevenue, symbol),
			"today_revenue":     analytics.FormatCurrency(summary.TodayRevenue, symbol),
			"displayed_revenue": analytics.FormatCurrency(summary.DisplayedRevenue, symbol),
			"projected_revenue": analytics.FormatCurrency(summary.ProjectedRevenue, symbol),
		},
	})
}

// tickerHandler returns today's entries and the marquee duration
func (s *HTTPServer) tickerHandler(w http.ResponseWriter, r *http.Request) {
	tv := s.deps.Ticker
	if tv == nil {
		tv = realtime.NewTickerView(s.config.Location, s.now)
		tv.SetPrice(s.config.Price, s.config.CurrencySymbol)
		tv.Update(s.deps.Store.Entries())
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker": tv.Snapshot(),
		"line":   tv.Line(),
	})
}

// refreshHandler refetches the log from the backend
func (s *HTTPServer) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Monitor == nil {
		s.unavailable(w, "Transaction monitor")
		return
	}

	if err := s.deps.Monitor.Refresh(r.Context()); err != nil {
		s.writeAppError(w, "Failed to refresh transactions", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Transactions refreshed",
		"entries": s.deps.Store.Len(),
	})
}

// Token Handlers

// tokenView is a token with its derived badge
type tokenView struct {
	models.Token
	Status        models.TokenStatus `json:"status"`
	DaysRemaining int                `json:"days_remaining"`
}

func (s *HTTPServer) tokenViews(list []models.Token) []tokenView {
	now := s.now()
	out := make([]tokenView, 0, len(list))
	for _, t := range list {
		out = append(out, tokenView{Token: t, Status: t.Status(now), DaysRemaining: t.DaysRemaining(now)})
	}
	return out
}

// listTokensHandler refetches tokens; status=active|revoked and q= narrow the list
func (s *HTTPServer) listTokensHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tokens == nil {
		s.unavailable(w, "Token board")
		return
	}

	if _, err := s.deps.Tokens.Refresh(r.Context()); err != nil {
		s.writeAppError(w, "Failed to retrieve tokens", err)
		return
	}

	var list []models.Token
	switch status := r.URL.Query().Get("status"); status {
	case "":
		list = s.deps.Tokens.Tokens()
	case "active":
		list = s.deps.Tokens.Active()
	case "revoked":
		list = s.deps.Tokens.Revoked()
	default:
		s.writeError(w, http.StatusBadRequest, "Status must be active or revoked", nil)
		return
	}

	if term := strings.ToLower(r.URL.Query().Get("q")); term != "" {
		kept := list[:0:0]
		for _, t := range list {
			if strings.Contains(strings.ToLower(t.Username), term) {
				kept = append(kept, t)
			}
		}
		list = kept
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": s.tokenViews(list),
		"total":  len(list),
	})
}

// createTokenHandler issues a new token
func (s *HTTPServer) createTokenHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tokens == nil {
		s.unavailable(w, "Token board")
		return
	}

	var req models.CreateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := s.deps.Tokens.Create(r.Context(), req)
	if err != nil && created == nil {
		s.writeAppError(w, "Failed to create token", err)
		return
	}

	resp := map[string]interface{}{"message": "Token created successfully"}
	if created != nil && created.ID != "" {
		resp["token"] = s.tokenViews([]models.Token{*created})[0]
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

// revokeTokenHandler deactivates a token
func (s *HTTPServer) revokeTokenHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tokens == nil {
		s.unavailable(w, "Token board")
		return
	}

	id := mux.Vars(r)["id"]
	if err := s.deps.Tokens.Revoke(r.Context(), id); err != nil {
		s.writeAppError(w, "Failed to revoke token", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Token revoked successfully",
		"token_id": id,
	})
}

// extendTokenHandler sets a new expiry and optional limit
func (s *HTTPServer) extendTokenHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tokens == nil {
		s.unavailable(w, "Token board")
		return
	}

	var req struct {
		Days              int  `json:"days"`
		TransactionsLimit *int `json:"transactionslimit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := mux.Vars(r)["id"]
	updated, err := s.deps.Tokens.Extend(r.Context(), id, req.Days, req.TransactionsLimit)
	if err != nil {
		s.writeAppError(w, "Failed to extend token", err)
		return
	}

	resp := map[string]interface{}{
		"message":  "Token extended successfully",
		"token_id": id,
	}
	if updated != nil {
		resp["token"] = s.tokenViews([]models.Token{*updated})[0]
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// deleteTokenHandler removes a token permanently
func (s *HTTPServer) deleteTokenHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tokens == nil {
		s.unavailable(w, "Token board")
		return
	}

	id := mux.Vars(r)["id"]
	if err := s.deps.Tokens.Delete(r.Context(), id); err != nil {
		s.writeAppError(w, "Failed to delete token", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Token deleted successfully",
		"token_id": id,
	})
}

// checkTokenHandler is the public token checker
func (s *HTTPServer) checkTokenHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tokens == nil {
		s.unavailable(w, "Token board")
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := s.deps.Tokens.Check(r.Context(), req.Token)
	if err != nil {
		s.writeAppError(w, "Failed to check token", err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// Information Handlers

func (s *HTTPServer) listInformationHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Info == nil {
		s.unavailable(w, "Information board")
		return
	}

	public, _ := strconv.ParseBool(r.URL.Query().Get("public"))
	infos, err := s.deps.Info.List(r.Context(), public)
	if err != nil {
		s.writeAppError(w, "Failed to retrieve information", err)
		return
	}
	s.writeInformation(w, http.StatusOK, infos)
}

func (s *HTTPServer) createInformationHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Info == nil {
		s.unavailable(w, "Information board")
		return
	}

	text, ok := s.decodeInformation(w, r)
	if !ok {
		return
	}

	infos, err := s.deps.Info.Create(r.Context(), text)
	if err != nil {
		s.writeAppError(w, "Failed to create information", err)
		return
	}
	s.writeInformation(w, http.StatusCreated, infos)
}

func (s *HTTPServer) updateInformationHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Info == nil {
		s.unavailable(w, "Information board")
		return
	}

	text, ok := s.decodeInformation(w, r)
	if !ok {
		return
	}

	infos, err := s.deps.Info.Update(r.Context(), mux.Vars(r)["id"], text)
	if err != nil {
		s.writeAppError(w, "Failed to update information", err)
		return
	}
	s.writeInformation(w, http.StatusOK, infos)
}

func (s *HTTPServer) deleteInformationHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Info == nil {
		s.unavailable(w, "Information board")
		return
	}

	infos, err := s.deps.Info.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeAppError(w, "Failed to delete information", err)
		return
	}
	s.writeInformation(w, http.StatusOK, infos)
}

func (s *HTTPServer) decodeInformation(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		Information string `json:"information"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return "", false
	}
	return req.Information, true
}

func (s *HTTPServer) writeInformation(w http.ResponseWriter, status int, infos []models.Information) {
	if infos == nil {
		infos = []models.Information{}
	}
	s.writeJSON(w, status, map[string]interface{}{
		"information": infos,
		"total":       len(infos),
	})
}

// Session Handlers

// sessionView describes the current login without exposing the token
type sessionView struct {
	LoggedIn  bool       `json:"logged_in"`
	Username  string     `json:"username,omitempty"`
	Role      string     `json:"role,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Expired   bool       `json:"expired"`
}

func (s *HTTPServer) currentSession() sessionView {
	sv := sessionView{LoggedIn: s.deps.Session.LoggedIn()}
	if !sv.LoggedIn {
		return sv
	}

	claims, err := s.deps.Session.Claims()
	if err != nil {
		return sv
	}
	sv.Username = claims.Username
	sv.Role = claims.Role
	if exp := claims.ExpiresAtTime(); !exp.IsZero() {
		sv.ExpiresAt = &exp
	}
	sv.Expired = claims.Expired(s.now())
	return sv
}

func (s *HTTPServer) loginHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Session == nil || s.deps.Login == nil {
		s.unavailable(w, "Session")
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Username == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "Username and password are required", nil)
		return
	}

	token, err := s.deps.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeAppError(w, "Login failed", err)
		return
	}
	if err := s.deps.Session.Set(r.Context(), token); err != nil {
		s.writeAppError(w, "Failed to store session", err)
		return
	}

	s.writeJSON(w, http.StatusOK, s.currentSession())
}

func (s *HTTPServer) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Session == nil {
		s.unavailable(w, "Session")
		return
	}

	if err := s.deps.Session.Clear(r.Context()); err != nil {
		s.writeAppError(w, "Failed to clear session", err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.currentSession())
}

func (s *HTTPServer) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Session == nil {
		s.unavailable(w, "Session")
		return
	}
	s.writeJSON(w, http.StatusOK, s.currentSession())
}

// Journal Handlers

// archiveHandler pages through the stored journal
func (s *HTTPServer) archiveHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Storage == nil {
		s.unavailable(w, "Storage")
		return
	}

	q := r.URL.Query()
	filter := models.LogEntryFilter{Limit: 50}

	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "Invalid "+name, utils.NewAppError(utils.ErrCodeValidation, name+" must be a non-negative integer"))
			return
		}
		*dst = n
	}
	if username := q.Get("username"); username != "" {
		filter.Username = &username
	}

	entries, err := s.deps.Storage.GetLogEntries(r.Context(), filter)
	if err != nil {
		s.writeAppError(w, "Failed to retrieve journal", err)
		return
	}
	total, err := s.deps.Storage.GetLogEntryCount(r.Context(), filter)
	if err != nil {
		s.writeAppError(w, "Failed to count journal", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
		"total":   total,
	})
}
