package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/smartdevs17/xltoken-dashboard/internal/analytics"
	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/internal/storage"
	"github.com/smartdevs17/xltoken-dashboard/internal/view"
)

const timeLayout = "2006-01-02 15:04:05"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatEntryTime(e models.LogEntry, loc *time.Location) string {
	if !e.Valid() {
		if e.RawCreatedAt == "" {
			return "-"
		}
		return e.RawCreatedAt + " (invalid)"
	}
	return e.CreatedAt.In(loc).Format(timeLayout)
}

// renderPage prints one page of the transaction table
func renderPage(w io.Writer, pv view.PageView, loc *time.Location) {
	tw := newTable(w)
	fmt.Fprintln(tw, "#\tUSERNAME\tTIME\tID")

	offset := 0
	if size, err := view.ParsePageSize(pv.PageSize); err == nil && size > 0 {
		offset = (pv.Page - 1) * int(size)
	}
	for i, e := range pv.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", offset+i+1, e.Username, formatEntryTime(e, loc), e.ID)
	}
	tw.Flush()

	pages := pv.TotalPages
	if pages == 0 {
		pages = 1
	}
	search := ""
	if pv.Search != "" {
		search = fmt.Sprintf(" search=%q", pv.Search)
	}
	fmt.Fprintf(w, "page %d/%d  filter=%s size=%s%s  showing %s of %s (total %s)\n",
		pv.Page, pages, pv.Filter, pv.PageSize, search,
		humanize.Comma(int64(len(pv.Entries))),
		humanize.Comma(int64(pv.FilteredCount)),
		humanize.Comma(int64(pv.TotalCount)))
}

// renderSummary prints the revenue and transaction cards
func renderSummary(w io.Writer, s analytics.Summary, symbol string) {
	tw := newTable(w)
	fmt.Fprintf(tw, "Price per transaction\t%s\n", analytics.FormatCurrency(s.PricePerTransaction, symbol))
	fmt.Fprintf(tw, "Today\t%s tx\t%s\n", humanize.Comma(int64(s.TodayTransactions)), analytics.FormatCurrency(s.TodayRevenue, symbol))
	fmt.Fprintf(tw, "This month\t%s tx\t%s\n", humanize.Comma(int64(s.MonthTransactions)), analytics.FormatCurrency(s.MonthRevenue, symbol))
	fmt.Fprintf(tw, "All time\t%s tx\t%s\n", humanize.Comma(int64(s.TotalTransactions)), analytics.FormatCurrency(s.TotalRevenue, symbol))
	fmt.Fprintf(tw, "Displayed (%s)\t%s tx\t%s\n", s.Range, humanize.Comma(int64(s.DisplayedTransactions)), analytics.FormatCurrency(s.DisplayedRevenue, symbol))
	fmt.Fprintf(tw, "Daily average\t%s tx\t\n", humanize.Comma(int64(s.DailyAverage)))
	fmt.Fprintf(tw, "Projected\t\t%s\n", analytics.FormatCurrency(s.ProjectedRevenue, symbol))
	tw.Flush()
}

// histogramWidth is the longest bar in characters
const histogramWidth = 40

// renderHistogram prints one bar per day scaled to the busiest day
func renderHistogram(w io.Writer, h analytics.Histogram, months []analytics.YearMonth) {
	if h.Total == 0 {
		fmt.Fprintf(w, "%s  (no transactions)\n", h.Month)
	} else {
		fmt.Fprintf(w, "%s  (%s transactions, peak %s/day)\n", h.Month, humanize.Comma(int64(h.Total)), humanize.Comma(int64(h.Max)))
	}
	for _, b := range h.Buckets {
		bar := ""
		if h.Max > 0 {
			bar = strings.Repeat("█", b.Count*histogramWidth/h.Max)
		}
		fmt.Fprintf(w, "%2d | %-*s %d\n", b.Day, histogramWidth, bar, b.Count)
	}

	if len(months) > 0 {
		names := make([]string, len(months))
		for i, m := range months {
			names[i] = m.String()
		}
		fmt.Fprintf(w, "available: %s\n", strings.Join(names, ", "))
	}
}

// renderTokens prints the token table with status badges
func renderTokens(w io.Writer, list []models.Token, now time.Time) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tUSERNAME\tSTATUS\tLIMIT\tEXPIRES\tTOKEN")
	for _, t := range list {
		expires := "-"
		if !t.ExpiredAt.IsZero() {
			expires = fmt.Sprintf("%s (%s)", t.ExpiredAt.Format("2006-01-02"), humanize.RelTime(t.ExpiredAt, now, "ago", "from now"))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Username, t.Status(now), humanize.Comma(int64(t.TransactionsLimit)), expires, t.Token)
	}
	tw.Flush()
}

// renderCheck prints the public checker result
func renderCheck(w io.Writer, r *models.TokenCheckResult) {
	if r.Token == nil {
		fmt.Fprintln(w, r.Message)
		return
	}
	tw := newTable(w)
	fmt.Fprintf(tw, "Username\t%s\n", r.Token.Username)
	fmt.Fprintf(tw, "Status\t%s\n", r.Status)
	fmt.Fprintf(tw, "Transactions left\t%s\n", humanize.Comma(int64(r.Token.TransactionsLimit)))
	fmt.Fprintf(tw, "Expires\t%s\n", r.Token.ExpiredAt.Format(timeLayout))
	fmt.Fprintf(tw, "Days remaining\t%d\n", r.DaysRemaining)
	tw.Flush()
}

// renderInformation prints the announcement board
func renderInformation(w io.Writer, infos []models.Information, now time.Time) {
	if len(infos) == 0 {
		fmt.Fprintln(w, "no information posted")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tPOSTED\tINFORMATION")
	for _, i := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", i.ID, humanize.RelTime(i.CreatedAt, now, "ago", "from now"), i.Information)
	}
	tw.Flush()
}

// renderJournal prints archived entries
func renderJournal(w io.Writer, entries []*storage.JournalEntry, total int64, loc *time.Location) {
	tw := newTable(w)
	fmt.Fprintln(tw, "USERNAME\tTIME\tSOURCE\tOBSERVED\tID")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Username, formatEntryTime(e.LogEntry, loc), e.Source, humanize.Time(e.ObservedAt), e.ID)
	}
	tw.Flush()
	fmt.Fprintf(w, "%s of %s archived entries\n", humanize.Comma(int64(len(entries))), humanize.Comma(total))
}
