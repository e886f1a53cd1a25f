// Package propagation verifies that a challenge TXT record is visible
// on the authoritative nameservers of its zone. Caching resolvers are
// bypassed: the checker discovers the zone's own servers and queries
// them directly.
package propagation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

const (
	defaultInterval     = 5 * time.Second
	defaultQueryTimeout = 5 * time.Second

	resolvConfPath = "/etc/resolv.conf"

	// MaxWait caps an otherwise unbounded propagation wait
	MaxWait = time.Hour
)

// Config holds checker configuration
type Config struct {
	// Nameservers, when set, are queried directly instead of the
	// discovered authoritative servers (host or host:port entries)
	Nameservers []string

	// Resolver is the recursive resolver used for nameserver discovery.
	// Defaults to the first server from /etc/resolv.conf.
	Resolver string

	// Interval between propagation probes
	Interval time.Duration

	// QueryTimeout bounds a single DNS exchange
	QueryTimeout time.Duration

	Logger *logrus.Entry
}

// Checker polls nameservers for an expected TXT value
type Checker struct {
	client      *dns.Client
	resolver    string
	nameservers []string
	interval    time.Duration
	logger      *logrus.Entry
}

// New creates a propagation checker. The recursive resolver is read
// from /etc/resolv.conf unless cfg.Resolver or a fixed nameserver list
// is provided.
func New(cfg *Config) (*Checker, error) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	queryTimeout := cfg.QueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}

	var nameservers []string
	for _, ns := range cfg.Nameservers {
		nameservers = append(nameservers, withDefaultPort(ns))
	}

	resolver := cfg.Resolver
	if resolver == "" && len(nameservers) == 0 {
		conf, err := dns.ClientConfigFromFile(resolvConfPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", resolvConfPath, err)
		}
		if len(conf.Servers) == 0 {
			return nil, errors.New("no recursive resolvers configured")
		}
		resolver = net.JoinHostPort(conf.Servers[0], conf.Port)
	}

	return &Checker{
		client:      &dns.Client{Timeout: queryTimeout},
		resolver:    withDefaultPort(resolver),
		nameservers: nameservers,
		interval:    interval,
		logger:      cfg.Logger,
	}, nil
}

// Wait polls until the TXT record fqdn holds value on every
// authoritative nameserver, or ctx expires. Probe failures are logged
// and retried on the next tick; only ctx decides when to give up.
func (c *Checker) Wait(ctx context.Context, fqdn, value string) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		ok, err := c.HasPropagated(ctx, fqdn, value)
		if err != nil {
			c.logger.WithError(err).WithField("fqdn", fqdn).Debug("Propagation probe failed, will retry")
		}
		if ok {
			c.logger.WithField("fqdn", fqdn).Info("TXT record visible on all authoritative nameservers")
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for %s to propagate: %w", fqdn, ctx.Err())
		case <-ticker.C:
		}
	}
}

// HasPropagated reports whether every nameserver answers the TXT query
// for fqdn with the expected value
func (c *Checker) HasPropagated(ctx context.Context, fqdn, value string) (bool, error) {
	servers := c.nameservers
	if len(servers) == 0 {
		var err error
		servers, err = c.AuthoritativeNameservers(ctx, fqdn)
		if err != nil {
			return false, err
		}
	}

	for _, server := range servers {
		ok, err := c.hasValue(ctx, server, fqdn, value)
		if err != nil {
			return false, fmt.Errorf("failed to query %s: %w", server, err)
		}
		if !ok {
			c.logger.WithFields(logrus.Fields{
				"fqdn":       fqdn,
				"nameserver": server,
			}).Debug("TXT record not yet visible")
			return false, nil
		}
	}

	return true, nil
}

// AuthoritativeNameservers discovers the nameservers responsible for
// fqdn by walking the name up label by label through the recursive
// resolver until an NS record set is found. The NS hosts are resolved
// to addresses suitable for direct queries.
func (c *Checker) AuthoritativeNameservers(ctx context.Context, fqdn string) ([]string, error) {
	labels := dns.SplitDomainName(dns.Fqdn(fqdn))

	// Stop before the bare TLD: its servers are never authoritative
	// for the challenge record.
	for i := 0; i < len(labels)-1; i++ {
		name := dns.Fqdn(strings.Join(labels[i:], "."))

		resp, err := c.exchange(ctx, name, dns.TypeNS, c.resolver)
		if err != nil {
			return nil, fmt.Errorf("NS lookup for %s failed: %w", name, err)
		}
		if resp.Rcode != dns.RcodeSuccess {
			continue
		}

		var hosts []string
		for _, rr := range resp.Answer {
			if ns, ok := rr.(*dns.NS); ok {
				hosts = append(hosts, ns.Ns)
			}
		}
		if len(hosts) == 0 {
			continue
		}

		var addrs []string
		for _, host := range hosts {
			resolved, err := c.resolveHost(ctx, host)
			if err != nil {
				c.logger.WithError(err).WithField("host", host).Warn("Failed to resolve nameserver host")
				continue
			}
			addrs = append(addrs, resolved...)
		}
		if len(addrs) == 0 {
			return nil, fmt.Errorf("could not resolve any nameserver of %s", name)
		}

		c.logger.WithFields(logrus.Fields{
			"zone":        name,
			"nameservers": addrs,
		}).Debug("Discovered authoritative nameservers")

		return addrs, nil
	}

	return nil, fmt.Errorf("no authoritative nameservers found for %s", fqdn)
}

// hasValue queries one nameserver for the TXT record and reports
// whether the expected value is present
func (c *Checker) hasValue(ctx context.Context, server, fqdn, value string) (bool, error) {
	resp, err := c.exchange(ctx, dns.Fqdn(fqdn), dns.TypeTXT, server)
	if err != nil {
		return false, err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return false, nil
	}

	for _, rr := range resp.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			if strings.Join(txt.Txt, "") == value {
				return true, nil
			}
		}
	}

	return false, nil
}

// resolveHost resolves a nameserver hostname to host:53 addresses,
// preferring A records and falling back to AAAA
func (c *Checker) resolveHost(ctx context.Context, host string) ([]string, error) {
	var addrs []string

	resp, err := c.exchange(ctx, dns.Fqdn(host), dns.TypeA, c.resolver)
	if err != nil {
		return nil, err
	}
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			addrs = append(addrs, net.JoinHostPort(a.A.String(), "53"))
		}
	}
	if len(addrs) > 0 {
		return addrs, nil
	}

	resp, err = c.exchange(ctx, dns.Fqdn(host), dns.TypeAAAA, c.resolver)
	if err != nil {
		return nil, err
	}
	for _, rr := range resp.Answer {
		if aaaa, ok := rr.(*dns.AAAA); ok {
			addrs = append(addrs, net.JoinHostPort(aaaa.AAAA.String(), "53"))
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no address records for %s", host)
	}

	return addrs, nil
}

func (c *Checker) exchange(ctx context.Context, name string, qtype uint16, server string) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(name, qtype)

	resp, _, err := c.client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// withDefaultPort appends :53 to bare hosts, leaving host:port entries alone
func withDefaultPort(server string) string {
	if server == "" {
		return server
	}
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, "53")
}
