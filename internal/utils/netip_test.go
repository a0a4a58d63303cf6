package utils

import (
	"net/http/httptest"
	"testing"
)

func TestIPMatcher(t *testing.T) {
	m := NewIPMatcher([]string{"10.0.0.0/8", " 192.168.1.7 ", "", "garbage", "fd00::/8"})

	cases := map[string]bool{
		"10.1.2.3":        true,
		"192.168.1.7":     true,
		"192.168.1.8":     false,
		"::ffff:10.0.0.1": true,
		"fd00::1":         true,
		"2001:db8::1":     false,
		"not-an-ip":       false,
	}
	for ip, want := range cases {
		if got := m.Allow(ip); got != want {
			t.Errorf("Allow(%q) = %v, want %v", ip, got, want)
		}
	}
	if m.IsEmpty() {
		t.Error("IsEmpty() = true")
	}
	if !NewIPMatcher([]string{"", "nope"}).IsEmpty() {
		t.Error("matcher without valid rules should be empty")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.9:5555"
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")

	if got := ClientIP(r, false); got != "203.0.113.9" {
		t.Errorf("ClientIP(untrusted) = %q", got)
	}
	if got := ClientIP(r, true); got != "198.51.100.1" {
		t.Errorf("ClientIP(trusted) = %q", got)
	}

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", "198.51.100.2")
	if got := ClientIP(r, true); got != "198.51.100.2" {
		t.Errorf("ClientIP(real ip) = %q", got)
	}
}

func TestParseHostNoPort(t *testing.T) {
	for in, want := range map[string]string{
		"":               "",
		"1.2.3.4":        "1.2.3.4",
		"1.2.3.4:80":     "1.2.3.4",
		"[::1]:80":       "::1",
		"[::1]":          "::1",
		"example.com:80": "example.com",
	} {
		if got := ParseHostNoPort(in); got != want {
			t.Errorf("ParseHostNoPort(%q) = %q, want %q", in, got, want)
		}
	}
}
