/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/wordjack/games/blackjack"
)

const sampleCSV = "Animal,Weight\n" +
	"Cat,4\n" +
	"\n" +
	"Dog, 30\n" +
	"Lonely\n" +
	",12\n" +
	"Ghost,\n" +
	"Fish,1.5\n" +
	"Snail,-1\n" +
	"Cat,9\n" +
	"\"Horse, large\",500\n"

func TestParse(t *testing.T) {
	sheet, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, blackjack.Headers{Name: "Animal", Value: "Weight"}, sheet.Headers)
	assert.Equal(t, []blackjack.Word{
		{Name: "Cat", Value: 4},
		{Name: "Dog", Value: 30},
		{Name: "Horse, large", Value: 500},
	}, sheet.Words)
}

func TestParse_DefaultsAndEmpty(t *testing.T) {
	sheet, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, sheet.Words)
	assert.Equal(t, blackjack.Headers{Name: DefaultNameLabel, Value: DefaultValueLabel}, sheet.Headers)

	sheet, err = Parse(strings.NewReader("\ufeff,\nA,1\n"))
	require.NoError(t, err)
	assert.Equal(t, blackjack.Headers{Name: DefaultNameLabel, Value: DefaultValueLabel}, sheet.Headers)
	assert.Equal(t, []blackjack.Word{{Name: "A", Value: 1}}, sheet.Words)
}

func TestSpreadsheetID(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"https://docs.google.com/spreadsheets/d/1Y-gSB3luE_aQ8/edit?gid=0#gid=0", "1Y-gSB3luE_aQ8", true},
		{"/spreadsheets/d/abc123/", "abc123", true},
		{"https://docs.google.com/d/xyz/", "xyz", true},
		{"https://example.com/words.csv", "", false},
	}

	for _, tt := range tests {
		got, ok := SpreadsheetID(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestResolveURL(t *testing.T) {
	got, err := ResolveURL("https://docs.google.com/spreadsheets/d/abc/edit#gid=42")
	require.NoError(t, err)
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/abc/export?format=csv&gid=42", got)

	got, err = ResolveURL("https://docs.google.com/spreadsheets/d/abc/edit")
	require.NoError(t, err)
	assert.Equal(t, ExportURL("abc", "0"), got)

	got, err = ResolveURL("https://example.com/list.csv")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/list.csv", got)

	_, err = ResolveURL("https://docs.google.com/document/abc")
	assert.ErrorIs(t, err, ErrInvalidSource)

	_, err = ResolveURL("ftp://example.com/list.csv")
	assert.ErrorIs(t, err, ErrInvalidSource)

	_, err = ResolveURL("not a url")
	assert.ErrorIs(t, err, ErrInvalidSource)
}

func TestHTTPProvider_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/words.csv":
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte(sampleCSV))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewHTTPProvider(zerolog.Nop())
	p.Client = srv.Client()

	sheet, err := p.Fetch(context.Background(), srv.URL+"/words.csv")
	require.NoError(t, err)
	assert.Len(t, sheet.Words, 3)

	_, err = p.Fetch(context.Background(), srv.URL+"/missing.csv")
	assert.ErrorIs(t, err, ErrFetch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Fetch(ctx, srv.URL+"/words.csv")
	assert.ErrorIs(t, err, ErrFetch)
}

func TestFileProviderAndAuto(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	fp := FileProvider{Logger: zerolog.Nop()}

	sheet, err := fp.Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Len(t, sheet.Words, 3)

	_, err = fp.Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, ErrFetch)

	_, err = fp.Fetch(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidSource)

	auto := Auto{HTTP: NewHTTPProvider(zerolog.Nop()), File: fp}

	_, err = auto.Fetch(context.Background(), path)
	assert.ErrorIs(t, err, ErrInvalidSource, "local files are off by default")

	auto.AllowFiles = true
	sheet, err = auto.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Animal", sheet.Headers.Name)
}

func TestProviders_RejectOversizedSource(t *testing.T) {
	big := strings.Repeat("word,1\n", maxBodySize/7+1)
	require.Greater(t, len(big), maxBodySize)

	path := filepath.Join(t.TempDir(), "big.csv")
	require.NoError(t, os.WriteFile(path, []byte(big), 0o644))

	_, err := FileProvider{Logger: zerolog.Nop()}.Fetch(context.Background(), path)
	assert.ErrorIs(t, err, ErrInvalidSource)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(big))
	}))
	defer srv.Close()

	p := NewHTTPProvider(zerolog.Nop())
	p.Client = srv.Client()

	_, err = p.Fetch(context.Background(), srv.URL+"/big.csv")
	assert.ErrorIs(t, err, ErrInvalidSource)

	exact := strings.Repeat("x", maxBodySize-len("\na,1")) + "\na,1"
	require.Len(t, exact, maxBodySize)

	sheet, err := parseLimited(strings.NewReader(exact))
	require.NoError(t, err, "a body of exactly the limit is accepted")
	assert.Equal(t, []blackjack.Word{{Name: "a", Value: 1}}, sheet.Words)
}

func TestAuto_RestrictsHosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Name,Value\nsecret,2\n"))
	}))
	defer srv.Close()

	httpProvider := NewHTTPProvider(zerolog.Nop())
	httpProvider.Client = srv.Client()

	auto := Auto{HTTP: httpProvider}

	_, err := auto.Fetch(context.Background(), srv.URL+"/internal/admin")
	assert.ErrorIs(t, err, ErrInvalidSource)

	auto.Allowed = []string{srv.URL + "/words.csv"}

	_, err = auto.Fetch(context.Background(), srv.URL+"/internal/admin")
	assert.ErrorIs(t, err, ErrInvalidSource, "only the exact configured url is allowed")

	sheet, err := auto.Fetch(context.Background(), srv.URL+"/words.csv")
	require.NoError(t, err)
	assert.Equal(t, []blackjack.Word{{Name: "secret", Value: 2}}, sheet.Words)

	auto.Allowed = nil
	auto.AllowAnyURL = true

	_, err = auto.Fetch(context.Background(), srv.URL+"/internal/admin")
	require.NoError(t, err)
}

func TestAuto_URLAllowed(t *testing.T) {
	auto := Auto{}

	tests := []struct {
		source string
		want   bool
	}{
		{"https://docs.google.com/spreadsheets/d/abc/edit#gid=0", true},
		{"https://DOCS.google.com/spreadsheets/d/abc/edit", true},
		{"http://docs.google.com/spreadsheets/d/abc/edit", false},
		{"https://docs.google.com.evil.example/spreadsheets/d/abc", false},
		{"https://user@docs.google.com/spreadsheets/d/abc", false},
		{"https://docs.google.com:8443/spreadsheets/d/abc", false},
		{"http://10.0.0.5/words.csv", false},
		{"http://127.0.0.1:8080/healthz", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, auto.urlAllowed(tt.source), tt.source)
	}
}
