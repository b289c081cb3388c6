package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/smartdevs17/xltoken-dashboard/internal/analytics"
	"github.com/smartdevs17/xltoken-dashboard/internal/auth"
	"github.com/smartdevs17/xltoken-dashboard/internal/connection"
	"github.com/smartdevs17/xltoken-dashboard/internal/logstore"
	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/internal/monitor"
	"github.com/smartdevs17/xltoken-dashboard/internal/storage"
	"github.com/smartdevs17/xltoken-dashboard/internal/view"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "xltoken dashboard %s\n", AppVersion)
	},
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

// validateConfigCmd validates the configuration
var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Configuration is valid!")
		fmt.Fprintf(out, "Environment: %s\n", cfg.App.Environment)
		fmt.Fprintf(out, "Backend: %s\n", cfg.API.BaseURL)
		if cfg.Realtime.Enabled {
			fmt.Fprintf(out, "Realtime: %s (event %q)\n", cfg.RealtimeURL(), cfg.Realtime.Event)
		} else {
			fmt.Fprintf(out, "Realtime: disabled (poll every %s)\n", cfg.Monitor.PollInterval)
		}
		fmt.Fprintf(out, "Database: %s\n", cfg.Storage.Type)
		fmt.Fprintf(out, "Price per transaction: %s\n", analytics.FormatCurrency(cfg.Price(), cfg.Analytics.CurrencySymbol))
		fmt.Fprintf(out, "Timezone: %s\n", cfg.Analytics.Timezone)
		fmt.Fprintf(out, "Webhooks: %d\n", len(cfg.Notifications.Webhooks))
		fmt.Fprintf(out, "Demo mode: %t\n", cfg.App.DemoMode)
		return nil
	},
}

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connectivity and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *Application) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Testing xltoken dashboard connectivity...")

			fmt.Fprintf(out, "Testing storage connection (%s)...\n", app.config.Storage.Type)
			if err := app.storage.Ping(); err != nil {
				return fmt.Errorf("failed to ping storage: %w", err)
			}
			fmt.Fprintln(out, "✓ Storage connection successful")

			if app.config.App.DemoMode {
				fmt.Fprintln(out, "Demo mode enabled, skipping backend checks")
				return nil
			}

			fmt.Fprintf(out, "Testing backend at %s...\n", app.client.BaseURL())
			infos, err := app.info.List(cmd.Context(), true)
			if err != nil {
				return fmt.Errorf("failed to reach backend: %w", err)
			}
			fmt.Fprintf(out, "✓ Backend reachable (%d public announcements)\n", len(infos))

			if app.config.Realtime.Enabled {
				if err := testRealtime(cmd.Context(), app, out); err != nil {
					return err
				}
			}

			fmt.Fprintln(out, "\nAll connectivity tests passed! ✓")
			return nil
		})
	},
}

// testRealtime dials the push channel once and waits for the handshake
func testRealtime(ctx context.Context, app *Application, out io.Writer) error {
	rt := app.config.Realtime
	fmt.Fprintf(out, "Testing realtime channel at %s...\n", app.config.RealtimeURL())

	socket, err := connection.NewManager(connection.Config{
		URL:               app.config.RealtimeURL(),
		Path:              rt.Path,
		Namespace:         rt.Namespace,
		DialTimeout:       rt.DialTimeout,
		ReconnectAttempts: 1,
	})
	if err != nil {
		return err
	}

	connected := make(chan struct{}, 1)
	socket.OnStateChange(func(up bool) {
		if up {
			select {
			case connected <- struct{}{}:
			default:
			}
		}
	})
	if err := socket.Start(ctx); err != nil {
		return fmt.Errorf("failed to start realtime channel: %w", err)
	}
	defer socket.Close()

	timeout := rt.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	select {
	case <-connected:
		fmt.Fprintln(out, "✓ Realtime channel connected")
		return nil
	case <-time.After(timeout):
		return utils.NewAppError(utils.ErrCodeConnection, "realtime channel did not connect", app.config.RealtimeURL())
	case <-ctx.Done():
		return ctx.Err()
	}
}

var loginFlags struct {
	username string
	password string
}

// loginCmd exchanges credentials for a session token
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the backend and store the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *Application) error {
			username := firstNonEmpty(loginFlags.username, app.config.Auth.Username)
			password := firstNonEmpty(loginFlags.password, app.config.Auth.Password)
			if username == "" || password == "" {
				return utils.NewAppError(utils.ErrCodeValidation, "username and password are required")
			}

			token, err := app.login(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if err := app.session.Set(cmd.Context(), token); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Logged in as %s\n", username)
			if !app.config.Auth.PersistSession {
				fmt.Fprintln(out, "Session persistence is disabled; the token is kept for this process only")
			}
			if claims, err := app.session.Claims(); err == nil {
				printClaims(out, claims, time.Now())
			}
			return nil
		})
	},
}

// logoutCmd clears the stored session
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *Application) error {
			if err := app.session.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		})
	},
}

// whoamiCmd prints the claims of the stored session
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *Application) error {
			out := cmd.OutOrStdout()
			if !app.session.LoggedIn() {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}
			claims, err := app.session.Claims()
			if err != nil {
				fmt.Fprintln(out, "Logged in (token claims unreadable)")
				return nil
			}
			printClaims(out, claims, time.Now())
			return nil
		})
	},
}

func printClaims(w io.Writer, c *auth.Claims, now time.Time) {
	if c.Username != "" {
		fmt.Fprintf(w, "User: %s\n", c.Username)
	}
	if c.Role != "" {
		fmt.Fprintf(w, "Role: %s\n", c.Role)
	}
	exp := c.ExpiresAtTime()
	switch {
	case exp.IsZero():
		fmt.Fprintln(w, "Expires: never")
	case c.Expired(now):
		fmt.Fprintf(w, "Expired: %s\n", humanize.RelTime(exp, now, "ago", "from now"))
	default:
		fmt.Fprintf(w, "Expires: %s\n", humanize.RelTime(exp, now, "ago", "from now"))
	}
}

// tokensCmd groups token management
var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Manage access tokens",
}

var tokenListFlags struct {
	status string
	search string
}

var tokensListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *Application) error {
			if _, err := app.tokens.Refresh(cmd.Context()); err != nil {
				return err
			}

			var list []models.Token
			switch strings.ToLower(tokenListFlags.status) {
			case "", "all":
				list = app.tokens.Tokens()
			case "active":
				list = app.tokens.Active()
			case "revoked":
				list = app.tokens.Revoked()
			default:
				return utils.NewAppError(utils.ErrCodeValidation, "invalid status", tokenListFlags.status)
			}

			if term := strings.ToLower(strings.TrimSpace(tokenListFlags.search)); term != "" {
				filtered := list[:0:0]
				for _, t := range list {
					if strings.Contains(strings.ToLower(t.Username), term) || strings.Contains(strings.ToLower(t.Token), term) {
						filtered = append(filtered, t)
					}
				}
				list = filtered
			}

			renderTokens(cmd.OutOrStdout(), list, time.Now())
			return nil
		})
	},
}

var tokenCreateFlags struct {
	username string
	days     int
	limit    int
}

var tokensCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *Application) error {
			token, err := app.tokens.Create(cmd.Context(), models.CreateTokenRequest{
				Username:          tokenCreateFlags.username,
				ExpiredDays:       tokenCreateFlags.days,
				TransactionsLimit: tokenCreateFlags.limit,
			})
			if err != nil {
				return err
			}
			renderTokens(cmd.OutOrStdout(), []models.Token{*token}, time.Now())
			return nil
		})
	},
}

var tokensRevokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Revoke a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *Application) error {
			if err := app.tokens.Revoke(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token %s revoked\n", args[0])
			return nil
		})
	},
}

var tokenExtendFlags struct {
	days  int
	limit int
}

var tokensExtendCmd = &cobra.Command{
	Use:   "extend <id>",
	Short: "Extend a token's expiry and limit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *Application) error {
			var limit *int
			if cmd.Flags().Changed("limit") {
				limit = &tokenExtendFlags.limit
			}
			token, err := app.tokens.Extend(cmd.Context(), args[0], tokenExtendFlags.days, limit)
			if err != nil {
				return err
			}
			renderTokens(cmd.OutOrStdout(), []models.Token{*token}, time.Now())
			return nil
		})
	},
}

var tokensDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *Application) error {
			if err := app.tokens.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token %s deleted\n", args[0])
			return nil
		})
	},
}

// checkCmd is the public token checker
var checkCmd = &cobra.Command{
	Use:   "check <token>",
	Short: "Check a token's status without logging in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *Application) error {
			result, err := app.tokens.Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderCheck(cmd.OutOrStdout(), result)
			return nil
		})
	},
}

// infoCmd groups information board management
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Manage the information board",
}

var infoPublic bool

var infoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List announcements",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *Application) error {
			infos, err := app.info.List(cmd.Context(), infoPublic)
			if err != nil {
				return err
			}
			renderInformation(cmd.OutOrStdout(), infos, time.Now())
			return nil
		})
	},
}

var infoCreateCmd = &cobra.Command{
	Use:   "create <text>",
	Short: "Post an announcement",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *Application) error {
			infos, err := app.info.Create(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			renderInformation(cmd.OutOrStdout(), infos, time.Now())
			return nil
		})
	},
}

var infoUpdateCmd = &cobra.Command{
	Use:   "update <id> <text>",
	Short: "Edit an announcement",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *Application) error {
			infos, err := app.info.Update(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			renderInformation(cmd.OutOrStdout(), infos, time.Now())
			return nil
		})
	},
}

var infoDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an announcement",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *Application) error {
			infos, err := app.info.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderInformation(cmd.OutOrStdout(), infos, time.Now())
			return nil
		})
	},
}

// transactionsCmd groups one-shot transaction views
var transactionsCmd = &cobra.Command{
	Use:     "transactions",
	Aliases: []string{"tx"},
	Short:   "Show the transaction log",
}

var txListFlags struct {
	filter   string
	search   string
	pageSize string
	page     int
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print one page of the transaction table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *Application) error {
			filter, size, err := parseViewFlags(
				firstNonEmpty(txListFlags.filter, app.config.Analytics.DefaultFilter),
				firstNonEmpty(txListFlags.pageSize, app.config.Analytics.DefaultPageSize),
			)
			if err != nil {
				return err
			}

			entries, err := loadEntries(cmd.Context(), app)
			if err != nil {
				return err
			}

			pv := view.Render(entries, filter, txListFlags.search, size, txListFlags.page, time.Now(), app.location)
			renderPage(cmd.OutOrStdout(), pv, app.location)
			return nil
		})
	},
}

var txSummaryRange string

var txSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print revenue and transaction totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *Application) error {
			statsRange := analytics.StatsRange(firstNonEmpty(txSummaryRange, app.config.Analytics.StatsRange))
			if statsRange != analytics.StatsRangeMonth && statsRange != analytics.StatsRangeAll {
				return utils.NewAppError(utils.ErrCodeValidation, "invalid range", string(statsRange))
			}

			entries, err := loadEntries(cmd.Context(), app)
			if err != nil {
				return err
			}

			summary := analytics.Summarize(entries, statsRange, app.config.Price(), time.Now(), app.location)
			renderSummary(cmd.OutOrStdout(), summary, app.config.Analytics.CurrencySymbol)
			return nil
		})
	},
}

var txHistogramMonth string

var txHistogramCmd = &cobra.Command{
	Use:   "histogram",
	Short: "Print the daily transaction histogram for a month",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *Application) error {
			now := time.Now()
			month := analytics.MonthOf(now, app.location)
			if txHistogramMonth != "" {
				var err error
				if month, err = analytics.ParseYearMonth(txHistogramMonth); err != nil {
					return utils.NewAppError(utils.ErrCodeValidation, "invalid month", txHistogramMonth)
				}
			}

			entries, err := loadEntries(cmd.Context(), app)
			if err != nil {
				return err
			}

			h := analytics.HistogramForMonth(entries, month.Year, month.Month, app.location)
			renderHistogram(cmd.OutOrStdout(), h, analytics.AvailableMonths(entries, now, app.location))
			return nil
		})
	},
}

// parseViewFlags validates the filter and page size options
func parseViewFlags(filter, pageSize string) (view.TimeRange, view.PageSize, error) {
	tr, err := view.ParseTimeRange(filter)
	if err != nil {
		return "", 0, err
	}
	size, err := view.ParsePageSize(pageSize)
	if err != nil {
		return "", 0, err
	}
	return tr, size, nil
}

// loadEntries fetches the full log once, newest first, and archives it
func loadEntries(ctx context.Context, app *Application) ([]models.LogEntry, error) {
	source := storage.SourceInitial
	var entries []models.LogEntry

	if app.config.App.DemoMode {
		source = storage.SourceDemo
		entries = monitor.GenerateDemoEntries(app.config.Monitor.DemoEntries, time.Now(), 1)
	} else {
		if !app.session.LoggedIn() {
			return nil, utils.NewAppError(utils.ErrCodeUnauthorized, "not logged in; run 'dashboard login' first")
		}
		var err error
		if entries, err = app.client.GetTokenLogTransactions(ctx); err != nil {
			return nil, fmt.Errorf("failed to load transactions: %w", err)
		}
	}

	store := logstore.New()
	store.LoadInitial(entries)
	sorted := store.Entries()

	if app.config.Processor.EnableArchive {
		if _, err := app.storage.SaveLogEntries(ctx, sorted, source); err != nil {
			app.logger.WithError(err).Warn("Failed to archive transactions")
		}
	}
	return sorted, nil
}

var historyFlags struct {
	limit    int
	offset   int
	username string
}

// historyCmd reads the local archive without calling the backend
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show archived transactions from local storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyFlags.limit < 0 || historyFlags.offset < 0 {
			return utils.NewAppError(utils.ErrCodeValidation, "limit and offset must not be negative")
		}
		return withApp(func(app *Application) error {
			filter := models.LogEntryFilter{Limit: historyFlags.limit, Offset: historyFlags.offset}
			if historyFlags.username != "" {
				filter.Username = &historyFlags.username
			}

			entries, err := app.storage.GetLogEntries(cmd.Context(), filter)
			if err != nil {
				return err
			}
			total, err := app.storage.GetLogEntryCount(cmd.Context(), filter)
			if err != nil {
				return err
			}

			renderJournal(cmd.OutOrStdout(), entries, total, app.location)
			return nil
		})
	},
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	loginCmd.Flags().StringVarP(&loginFlags.username, "username", "u", "", "username (defaults to auth.username)")
	loginCmd.Flags().StringVarP(&loginFlags.password, "password", "p", "", "password (defaults to auth.password)")

	tokensListCmd.Flags().StringVar(&tokenListFlags.status, "status", "all", "all, active or revoked")
	tokensListCmd.Flags().StringVarP(&tokenListFlags.search, "search", "s", "", "username or token substring")

	tokensCreateCmd.Flags().StringVarP(&tokenCreateFlags.username, "username", "u", "", "token owner")
	tokensCreateCmd.Flags().IntVar(&tokenCreateFlags.days, "days", 30, "days until expiry")
	tokensCreateCmd.Flags().IntVar(&tokenCreateFlags.limit, "limit", 0, "transactions limit (0 uses the backend default)")
	tokensCreateCmd.MarkFlagRequired("username")

	tokensExtendCmd.Flags().IntVar(&tokenExtendFlags.days, "days", 30, "days to add")
	tokensExtendCmd.Flags().IntVar(&tokenExtendFlags.limit, "limit", 0, "new transactions limit (unchanged when omitted)")

	tokensCmd.AddCommand(tokensListCmd, tokensCreateCmd, tokensRevokeCmd, tokensExtendCmd, tokensDeleteCmd)

	infoListCmd.Flags().BoolVar(&infoPublic, "public", false, "use the public endpoint")
	infoCmd.AddCommand(infoListCmd, infoCreateCmd, infoUpdateCmd, infoDeleteCmd)

	txListCmd.Flags().StringVarP(&txListFlags.filter, "filter", "f", "", "all, month or day")
	txListCmd.Flags().StringVarP(&txListFlags.search, "search", "s", "", "username substring")
	txListCmd.Flags().StringVar(&txListFlags.pageSize, "page-size", "", "5, 10, 20 or all")
	txListCmd.Flags().IntVar(&txListFlags.page, "page", 1, "page number")
	txSummaryCmd.Flags().StringVar(&txSummaryRange, "range", "", "month or all")
	txHistogramCmd.Flags().StringVar(&txHistogramMonth, "month", "", "month as YYYY-MM (defaults to the current month)")
	transactionsCmd.AddCommand(txListCmd, txSummaryCmd, txHistogramCmd)

	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", 50, "maximum entries")
	historyCmd.Flags().IntVar(&historyFlags.offset, "offset", 0, "entries to skip")
	historyCmd.Flags().StringVar(&historyFlags.username, "username", "", "exact username")
}
