/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package sheets loads word lists from spreadsheets exported as CSV.
package sheets

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/Seednode/wordjack/games/blackjack"
)

const (
	DefaultNameLabel  = "Word"
	DefaultValueLabel = "Value"

	fetchTimeout = 10 * time.Second

	// larger exports are almost certainly not a word list
	maxBodySize = 8 << 20
)

var (
	ErrInvalidSource = errors.New("invalid word source")
	ErrFetch         = errors.New("fetching word source failed")

	spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)|/d/([a-zA-Z0-9_-]+)`)
	gidPattern           = regexp.MustCompile(`gid=([0-9]+)`)
)

// SpreadsheetID extracts the document id from a Google Sheets URL.
func SpreadsheetID(source string) (string, bool) {
	m := spreadsheetIDPattern.FindStringSubmatch(source)
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return m[1], true
	}
	return m[2], m[2] != ""
}

// SheetGID returns the tab id named in the URL query or fragment, or "0".
func SheetGID(source string) string {
	if m := gidPattern.FindStringSubmatch(source); m != nil {
		return m[1]
	}
	return "0"
}

func ExportURL(id, gid string) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv&gid=%s", id, gid)
}

// Parse reads a two-column CSV export. The first record holds the column
// labels; rows without a name or an integer value are skipped.
func Parse(r io.Reader) (blackjack.Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	sheet := blackjack.Sheet{
		Words: []blackjack.Word{},
		Headers: blackjack.Headers{
			Name:  DefaultNameLabel,
			Value: DefaultValueLabel,
		},
	}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return sheet, nil
	}
	if err != nil {
		return sheet, fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}

	if len(header) > 0 {
		if label := strings.TrimSpace(strings.TrimPrefix(header[0], "\ufeff")); label != "" {
			sheet.Headers.Name = label
		}
	}
	if len(header) > 1 {
		if label := strings.TrimSpace(header[1]); label != "" {
			sheet.Headers.Value = label
		}
	}

	seen := make(map[string]bool)

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sheet, fmt.Errorf("%w: %w", ErrInvalidSource, err)
		}

		if len(record) < 2 {
			continue
		}

		name := strings.TrimSpace(record[0])
		raw := strings.TrimSpace(record[1])
		if name == "" || raw == "" || seen[name] {
			continue
		}

		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			continue
		}

		seen[name] = true
		sheet.Words = append(sheet.Words, blackjack.Word{Name: name, Value: value})
	}

	return sheet, nil
}

// HTTPProvider downloads a CSV over http(s). Google Sheets links are turned
// into their CSV export URL first.
type HTTPProvider struct {
	Client *http.Client
	Logger zerolog.Logger
}

func NewHTTPProvider(logger zerolog.Logger) *HTTPProvider {
	return &HTTPProvider{
		Client: &http.Client{Timeout: fetchTimeout},
		Logger: logger,
	}
}

// ResolveURL returns the URL a source will actually be downloaded from.
func ResolveURL(source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}

	if strings.HasSuffix(u.Hostname(), "docs.google.com") {
		id, ok := SpreadsheetID(u.Path)
		if !ok {
			return "", fmt.Errorf("%w: no spreadsheet id in %q", ErrInvalidSource, source)
		}
		return ExportURL(id, SheetGID(source)), nil
	}

	return source, nil
}

func (p *HTTPProvider) Fetch(ctx context.Context, source string) (blackjack.Sheet, error) {
	target, err := ResolveURL(source)
	if err != nil {
		return blackjack.Sheet{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return blackjack.Sheet{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", "text/csv")

	startTime := time.Now()

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return blackjack.Sheet{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return blackjack.Sheet{}, fmt.Errorf("%w: %s returned %s", ErrFetch, target, resp.Status)
	}

	sheet, err := parseLimited(resp.Body)
	if err != nil {
		return sheet, err
	}

	p.Logger.Info().
		Str("url", target).
		Int("words", len(sheet.Words)).
		Dur("elapsed", time.Since(startTime).Round(time.Millisecond)).
		Msg("fetched word list")

	return sheet, nil
}

// parseLimited refuses sources over maxBodySize instead of parsing a
// truncated list.
func parseLimited(r io.Reader) (blackjack.Sheet, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBodySize+1))
	if err != nil {
		return blackjack.Sheet{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if len(data) > maxBodySize {
		return blackjack.Sheet{}, fmt.Errorf("%w: word list too large (over %d bytes)", ErrInvalidSource, maxBodySize)
	}

	return Parse(bytes.NewReader(data))
}

// FileProvider reads a CSV from disk, for playing without network access.
type FileProvider struct {
	Logger zerolog.Logger
}

func (p FileProvider) Fetch(ctx context.Context, source string) (blackjack.Sheet, error) {
	path := strings.TrimPrefix(source, "file://")
	if path == "" {
		return blackjack.Sheet{}, fmt.Errorf("%w: empty path", ErrInvalidSource)
	}

	if err := ctx.Err(); err != nil {
		return blackjack.Sheet{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return blackjack.Sheet{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer f.Close()

	sheet, err := parseLimited(f)
	if err != nil {
		return sheet, err
	}

	p.Logger.Info().Str("path", path).Int("words", len(sheet.Words)).Msg("read word list")

	return sheet, nil
}

// GoogleSheetsHost is the only host Auto fetches from unless AllowAnyURL is set.
const GoogleSheetsHost = "docs.google.com"

// Auto dispatches on the source: http(s) URLs go to HTTP, anything else is
// treated as a local file unless local files are disabled. URLs are limited
// to Google Sheets and the Allowed list unless AllowAnyURL is set.
type Auto struct {
	HTTP        *HTTPProvider
	File        FileProvider
	AllowFiles  bool
	AllowAnyURL bool
	Allowed     []string
}

func (a Auto) urlAllowed(source string) bool {
	if a.AllowAnyURL || lo.Contains(a.Allowed, source) {
		return true
	}

	u, err := url.Parse(source)
	if err != nil {
		return false
	}

	return u.Scheme == "https" && u.User == nil && strings.EqualFold(u.Host, GoogleSheetsHost)
}

func (a Auto) Fetch(ctx context.Context, source string) (blackjack.Sheet, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		if !a.urlAllowed(source) {
			return blackjack.Sheet{}, fmt.Errorf("%w: only Google Sheets links are allowed", ErrInvalidSource)
		}
		return a.HTTP.Fetch(ctx, source)
	case a.AllowFiles:
		return a.File.Fetch(ctx, source)
	default:
		return blackjack.Sheet{}, fmt.Errorf("%w: only http(s) sources are allowed", ErrInvalidSource)
	}
}
