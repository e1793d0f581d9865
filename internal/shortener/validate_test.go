package shortener

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "adds https scheme", in: "example.com", want: "https://example.com"},
		{name: "trims whitespace", in: "  example.com/path  ", want: "https://example.com/path"},
		{name: "keeps http", in: "http://example.com", want: "http://example.com"},
		{name: "scheme is case-insensitive", in: "HTTPS://Example.COM", want: "HTTPS://Example.COM"},
		{name: "localhost with port", in: "localhost:3000/x", want: "https://localhost:3000/x"},
		{name: "ipv4", in: "http://192.168.0.1/admin", want: "http://192.168.0.1/admin"},
		{name: "subdomain query fragment", in: "https://a.b.example.co.uk/p?q=1#top", want: "https://a.b.example.co.uk/p?q=1#top"},
		{name: "query after slash", in: "example.com/?ref=x", want: "https://example.com/?ref=x"},
		{name: "bare localhost port", in: "http://localhost:8080", want: "http://localhost:8080"},
		{name: "empty", in: "   ", wantErr: true},
		{name: "port on a hostname", in: "example.com:8080", wantErr: true},
		{name: "port on an ipv4 address", in: "http://1.2.3.4:99/x", wantErr: true},
		{name: "query without path", in: "example.com?ref=x", wantErr: true},
		{name: "fragment without path", in: "example.com#top", wantErr: true},
		{name: "no tld", in: "example", wantErr: true},
		{name: "one letter tld", in: "example.c", wantErr: true},
		{name: "ftp becomes https prefixed and fails", in: "ftp://example.com", wantErr: true},
		{name: "space in path", in: "example.com/a b", wantErr: true},
		{name: "too long", in: "example.com/" + strings.Repeat("a", MaxURLLength), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeURL(%q) = %q, want error", tt.in, got)
				}
				if !errors.Is(err, ErrInvalidURL) {
					t.Errorf("error = %v, want ErrInvalidURL", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeURL(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseExpiry(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantNil bool
		wantErr bool
	}{
		{in: "", wantNil: true},
		{in: "2025-01-02", want: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
		{in: "2025-01-02T15:04", want: time.Date(2025, 1, 2, 15, 4, 0, 0, time.UTC)},
		{in: "2025-01-02T15:04:05+02:00", want: time.Date(2025, 1, 2, 13, 4, 5, 0, time.UTC)},
		{in: "2025-01-02T15:04:05.123Z", want: time.Date(2025, 1, 2, 15, 4, 5, 123e6, time.UTC)},
		{in: "tomorrow", wantErr: true},
		{in: "02/01/2025", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseExpiry(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidExpiry) {
					t.Fatalf("ParseExpiry(%q) error = %v, want ErrInvalidExpiry", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseExpiry(%q) unexpected error: %v", tt.in, err)
			}
			if tt.wantNil {
				if got != nil {
					t.Fatalf("ParseExpiry(%q) = %v, want nil", tt.in, got)
				}
				return
			}
			if got == nil || !got.Equal(tt.want) {
				t.Errorf("ParseExpiry(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateSlug(t *testing.T) {
	reserved := NewReservedSet("Shorten-URLs")

	tests := []struct {
		name    string
		slug    string
		wantErr bool
	}{
		{"valid short slug", "abc", false},
		{"valid with dash and underscore", "my-custom_slug", false},
		{"valid max length", strings.Repeat("a", MaxSlugLength), false},
		{"empty", "", true},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", MaxSlugLength+1), true},
		{"leading dash", "-abc", true},
		{"trailing underscore", "abc_", true},
		{"slash", "a/b/c", true},
		{"dot", "a.bc", true},
		{"unicode", "héllo", true},
		{"reserved", "api", true},
		{"reserved any case", "STATIC", true},
		{"configured base path", "shorten-urls", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSlug(tt.slug, reserved)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateSlug(%q) error = %v, wantErr %v", tt.slug, err, tt.wantErr)
			}
		})
	}

	if err := validateSlug("api", reserved); !errors.Is(err, ErrReservedCode) {
		t.Errorf("reserved slug error = %v, want ErrReservedCode", err)
	}
}

func TestReservedSet(t *testing.T) {
	s := NewReservedSet("/Shorten-URLs/", "  ", "")

	for _, name := range []string{"favicon.ico", "API", "_next", "static", "shorten-urls", "files", "upload"} {
		if !s.Contains(name) {
			t.Errorf("Contains(%q) = false, want true", name)
		}
	}
	if s.Contains("example") {
		t.Error(`Contains("example") = true, want false`)
	}
	if len(s.Names()) != len(DefaultReserved)+1 {
		t.Errorf("Names() = %v, want defaults plus base path", s.Names())
	}

	var nilSet *ReservedSet
	if !nilSet.Contains("api") || nilSet.Contains("example") {
		t.Error("nil set should fall back to the defaults")
	}
}

func TestLink_Expired(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	if (Link{}).Expired(now) {
		t.Error("link without expiry should never expire")
	}
	if !(Link{ExpiresAt: &past}).Expired(now) {
		t.Error("past expiry should be expired")
	}
	if !(Link{ExpiresAt: &now}).Expired(now) {
		t.Error("expiry equal to now should be expired")
	}
	if (Link{ExpiresAt: &future}).Expired(now) {
		t.Error("future expiry should not be expired")
	}
}
