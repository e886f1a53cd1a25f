package propagation

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "test")
}

func startDNSServer(t *testing.T, handler dns.Handler) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	server := &dns.Server{PacketConn: pc, Handler: handler}
	go server.ActivateAndServe()
	t.Cleanup(func() { _ = server.Shutdown() })

	return pc.LocalAddr().String()
}

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	if err != nil {
		t.Fatalf("Failed to build RR %q: %v", s, err)
	}
	return rr
}

// txtHandler answers TXT queries for fqdn with the given values
func txtHandler(t *testing.T, fqdn string, values ...string) dns.Handler {
	return dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		if q.Qtype == dns.TypeTXT && q.Name == fqdn {
			for _, v := range values {
				m.Answer = append(m.Answer, mustRR(t, fqdn+` 60 IN TXT "`+v+`"`))
			}
		}
		w.WriteMsg(m)
	})
}

func newTestChecker(t *testing.T, nameservers ...string) *Checker {
	t.Helper()
	checker, err := New(&Config{
		Nameservers:  nameservers,
		Interval:     10 * time.Millisecond,
		QueryTimeout: 2 * time.Second,
		Logger:       newTestLogger(),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return checker
}

func TestHasPropagated_Visible(t *testing.T) {
	addr := startDNSServer(t, txtHandler(t, "_acme-challenge.example.com.", "challenge-value"))
	checker := newTestChecker(t, addr)

	ok, err := checker.HasPropagated(context.Background(), "_acme-challenge.example.com", "challenge-value")
	if err != nil {
		t.Fatalf("HasPropagated() failed: %v", err)
	}
	if !ok {
		t.Error("Expected record to be reported as propagated")
	}
}

func TestHasPropagated_WrongValue(t *testing.T) {
	addr := startDNSServer(t, txtHandler(t, "_acme-challenge.example.com.", "other-value"))
	checker := newTestChecker(t, addr)

	ok, err := checker.HasPropagated(context.Background(), "_acme-challenge.example.com", "challenge-value")
	if err != nil {
		t.Fatalf("HasPropagated() failed: %v", err)
	}
	if ok {
		t.Error("Expected record with wrong value to not count as propagated")
	}
}

func TestHasPropagated_ExpectedValueAmongOthers(t *testing.T) {
	addr := startDNSServer(t, txtHandler(t, "_acme-challenge.example.com.", "other-value", "challenge-value"))
	checker := newTestChecker(t, addr)

	ok, err := checker.HasPropagated(context.Background(), "_acme-challenge.example.com", "challenge-value")
	if err != nil {
		t.Fatalf("HasPropagated() failed: %v", err)
	}
	if !ok {
		t.Error("Expected propagation when the value is present among other TXT records")
	}
}

func TestHasPropagated_NXDomain(t *testing.T) {
	addr := startDNSServer(t, dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(r, dns.RcodeNameError)
		w.WriteMsg(m)
	}))
	checker := newTestChecker(t, addr)

	ok, err := checker.HasPropagated(context.Background(), "_acme-challenge.example.com", "challenge-value")
	if err != nil {
		t.Fatalf("HasPropagated() failed: %v", err)
	}
	if ok {
		t.Error("Expected NXDOMAIN to not count as propagated")
	}
}

func TestHasPropagated_RequiresAllNameservers(t *testing.T) {
	withRecord := startDNSServer(t, txtHandler(t, "_acme-challenge.example.com.", "challenge-value"))
	withoutRecord := startDNSServer(t, txtHandler(t, "_acme-challenge.example.com."))
	checker := newTestChecker(t, withRecord, withoutRecord)

	ok, err := checker.HasPropagated(context.Background(), "_acme-challenge.example.com", "challenge-value")
	if err != nil {
		t.Fatalf("HasPropagated() failed: %v", err)
	}
	if ok {
		t.Error("Expected propagation to require every nameserver to answer")
	}
}

func TestWait_SucceedsOnceVisible(t *testing.T) {
	var mu sync.Mutex
	queries := 0

	addr := startDNSServer(t, dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		mu.Lock()
		queries++
		visible := queries > 2
		mu.Unlock()

		m := new(dns.Msg)
		m.SetReply(r)
		if visible {
			m.Answer = append(m.Answer, mustRR(t, `_acme-challenge.example.com. 60 IN TXT "challenge-value"`))
		}
		w.WriteMsg(m)
	}))
	checker := newTestChecker(t, addr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := checker.Wait(ctx, "_acme-challenge.example.com", "challenge-value"); err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if queries < 3 {
		t.Errorf("Expected at least 3 queries before success, got %d", queries)
	}
}

func TestWait_Timeout(t *testing.T) {
	addr := startDNSServer(t, txtHandler(t, "_acme-challenge.example.com."))
	checker := newTestChecker(t, addr)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := checker.Wait(ctx, "_acme-challenge.example.com", "challenge-value")
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("Expected timeout error, got: %v", err)
	}
}

func TestAuthoritativeNameservers(t *testing.T) {
	resolver := startDNSServer(t, dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]

		switch {
		case q.Qtype == dns.TypeNS && q.Name == "example.com.":
			m.Answer = append(m.Answer, mustRR(t, "example.com. 3600 IN NS ns1.example.com."))
		case q.Qtype == dns.TypeA && q.Name == "ns1.example.com.":
			m.Answer = append(m.Answer, mustRR(t, "ns1.example.com. 3600 IN A 127.0.0.1"))
		}
		// NS queries for deeper names return empty answers, forcing the
		// walk up to the zone cut at example.com.
		w.WriteMsg(m)
	}))

	checker, err := New(&Config{
		Resolver:     resolver,
		Interval:     10 * time.Millisecond,
		QueryTimeout: 2 * time.Second,
		Logger:       newTestLogger(),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	addrs, err := checker.AuthoritativeNameservers(context.Background(), "_acme-challenge.www.example.com")
	if err != nil {
		t.Fatalf("AuthoritativeNameservers() failed: %v", err)
	}

	if len(addrs) != 1 || addrs[0] != "127.0.0.1:53" {
		t.Errorf("Expected [127.0.0.1:53], got %v", addrs)
	}
}

func TestWithDefaultPort(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ns1.example.com", "ns1.example.com:53"},
		{"ns1.example.com:5353", "ns1.example.com:5353"},
		{"192.0.2.1", "192.0.2.1:53"},
		{"2001:db8::1", "[2001:db8::1]:53"},
		{"[2001:db8::1]:5353", "[2001:db8::1]:5353"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := withDefaultPort(tt.input); got != tt.expected {
				t.Errorf("withDefaultPort(%q) = %q; want %q", tt.input, got, tt.expected)
			}
		})
	}
}
