package utils

import "testing"

func TestExtractDomain(t *testing.T) {
	tests := map[string]string{
		"https://www.Tabelog.com/kanagawa/A1404/": "tabelog.com",
		"tabelog.com":                             "tabelog.com",
		"http://s.tabelog.com/x?y=1":              "s.tabelog.com",
		"https://example.jp#frag":                 "example.jp",
		"":                                        "",
	}
	for in, want := range tests {
		if got := ExtractDomain(in); got != want {
			t.Errorf("ExtractDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOnDomain(t *testing.T) {
	tests := []struct {
		u, domain string
		want      bool
	}{
		{"https://tabelog.com/tokyo/A1301/A130101/13000001/", "tabelog.com", true},
		{"https://s.tabelog.com/tokyo/", "tabelog.com", true},
		{"https://nottabelog.com/", "tabelog.com", false},
		{"https://tabelog.com.evil.example/", "tabelog.com", false},
		{"", "tabelog.com", false},
	}
	for _, tt := range tests {
		if got := OnDomain(tt.u, tt.domain); got != tt.want {
			t.Errorf("OnDomain(%q, %q) = %v, want %v", tt.u, tt.domain, got, tt.want)
		}
	}
}
