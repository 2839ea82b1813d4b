package support

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/pagevault/pagevault/internal/cache"
)

// Reporter receives rendered issue reports. The default implementation writes
// them to the structured log; a deployment can swap in an SMTP sender.
type Reporter interface {
	Report(ctx context.Context, subject, body string) error
}

// LogReporter logs rendered issue reports.
type LogReporter struct{}

func (LogReporter) Report(ctx context.Context, subject, body string) error {
	slog.InfoContext(ctx, "issue report received",
		slog.String("subject", subject),
		slog.String("report", body))
	return nil
}

// IssueReport carries the fields of a submitted issue.
type IssueReport struct {
	Email   string
	Desc    string
	URL     string
	State   string
	Browser string
	Time    time.Time
}

const issueReportTemplate = `Issue Report
============
Time:    {{.Time.Format "2006-01-02 15:04:05 MST"}}
Email:   {{if .Email}}{{.Email}}{{else}}(not given){{end}}
Browser: {{.Browser}}
Page:    {{if .URL}}{{.URL}}{{else}}(unknown){{end}}
State:   {{if .State}}{{.State}}{{else}}(unknown){{end}}

{{.Desc}}
`

var issueTmpl = template.Must(template.New("issue").Parse(issueReportTemplate))

// Service implements the support operations: issue reporting and
// skip-recording markers.
type Service struct {
	store    cache.Store
	reporter Reporter
	skipTTL  time.Duration
}

// NewService creates a support Service. A nil reporter falls back to logging.
func NewService(store cache.Store, reporter Reporter, skipTTL time.Duration) *Service {
	if reporter == nil {
		reporter = LogReporter{}
	}
	if skipTTL <= 0 {
		skipTTL = 5 * time.Minute
	}
	return &Service{store: store, reporter: reporter, skipTTL: skipTTL}
}

// ReportIssue renders the report and hands it to the reporter.
func (s *Service) ReportIssue(ctx context.Context, report IssueReport) error {
	if report.Time.IsZero() {
		report.Time = time.Now().UTC()
	}

	var buf bytes.Buffer
	if err := issueTmpl.Execute(&buf, report); err != nil {
		return err
	}

	return s.reporter.Report(ctx, "Issue Reported", buf.String())
}

// MarkSkip flags url as non-recordable for username for the configured TTL.
// The recorder consults the same key before writing a capture.
func (s *Service) MarkSkip(ctx context.Context, username, url string) error {
	return s.store.SetEx(ctx, cache.SkipKey(username, url), []byte("1"), s.skipTTL)
}

// BrowserString condenses a User-Agent header into a human-readable
// "browser on platform" label for issue reports. It only needs to be good
// enough for triage, so a handful of substring checks beats a full UA parser.
func BrowserString(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "unknown"
	}

	ua := strings.ToLower(userAgent)

	browser := "unknown browser"
	switch {
	case strings.Contains(ua, "edg/") || strings.Contains(ua, "edge/"):
		browser = "Edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		browser = "Opera"
	case strings.Contains(ua, "chrome/"):
		browser = "Chrome"
	case strings.Contains(ua, "firefox/"):
		browser = "Firefox"
	case strings.Contains(ua, "safari/"):
		browser = "Safari"
	case strings.Contains(ua, "msie") || strings.Contains(ua, "trident/"):
		browser = "Internet Explorer"
	}

	platform := "unknown platform"
	switch {
	case strings.Contains(ua, "android"):
		platform = "Android"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		platform = "iOS"
	case strings.Contains(ua, "windows"):
		platform = "Windows"
	case strings.Contains(ua, "mac os x"):
		platform = "macOS"
	case strings.Contains(ua, "linux"):
		platform = "Linux"
	}

	return browser + " on " + platform
}
