package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIPResolverTrustsLoopbackByDefault(t *testing.T) {
	resolver := newClientIPResolver(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 198.51.100.4")

	if got := resolver.clientIPFromRequest(req); got != "203.0.113.7" {
		t.Fatalf("clientIPFromRequest() = %q, want %q", got, "203.0.113.7")
	}
}

func TestClientIPResolverIgnoresForwardedHeaderFromUntrustedProxy(t *testing.T) {
	resolver := newClientIPResolver(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "198.51.100.10:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")

	if got := resolver.clientIPFromRequest(req); got != "198.51.100.10" {
		t.Fatalf("clientIPFromRequest() = %q, want %q", got, "198.51.100.10")
	}
}

func TestClientIPResolverTrustsConfiguredProxyCIDR(t *testing.T) {
	resolver := newClientIPResolver([]string{"198.51.100.0/24"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "198.51.100.10:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")

	if got := resolver.clientIPFromRequest(req); got != "203.0.113.7" {
		t.Fatalf("clientIPFromRequest() = %q, want %q", got, "203.0.113.7")
	}
}

func TestClientIPResolverAcceptsSingleAddressAndIPv6Peer(t *testing.T) {
	resolver := newClientIPResolver([]string{"10.1.2.3", "not-an-ip"})

	req := httptest.NewRequest(http.MethodGet, "/api/share/x", nil)
	req.RemoteAddr = "10.1.2.3:4000"
	req.Header.Set("X-Real-IP", "203.0.113.9")
	if got := resolver.clientIPFromRequest(req); got != "203.0.113.9" {
		t.Fatalf("clientIPFromRequest() = %q, want %q", got, "203.0.113.9")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/share/x", nil)
	req.RemoteAddr = "[2001:db8::1]:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	if got := resolver.clientIPFromRequest(req); got != "2001:db8::1" {
		t.Fatalf("clientIPFromRequest() = %q, want %q", got, "2001:db8::1")
	}
}

func TestClientIPResolverFallsBackOnGarbageHeader(t *testing.T) {
	resolver := newClientIPResolver(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	req.Header.Set("X-Forwarded-For", "unknown, 203.0.113.7")
	if got := resolver.clientIPFromRequest(req); got != "127.0.0.1" {
		t.Fatalf("clientIPFromRequest() = %q, want %q", got, "127.0.0.1")
	}
}
