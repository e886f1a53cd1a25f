// Package active24dns implements a DNS-01 challenge provider for the
// Active24 DNS API, pluggable into go-acme/lego as the host ACME
// client. Present publishes the challenge TXT record and blocks until
// it is visible on the zone's authoritative nameservers; CleanUp
// removes it again.
package active24dns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-acme/lego/v4/challenge"
	"github.com/go-acme/lego/v4/challenge/dns01"
	"github.com/sirupsen/logrus"

	"active24dns/internal/active24"
	"active24dns/internal/config"
	"active24dns/internal/dnsname"
	"active24dns/internal/propagation"
)

// waiter blocks until a TXT record is visible on the authoritative
// nameservers
type waiter interface {
	Wait(ctx context.Context, fqdn, value string) error
}

// DNSProvider implements challenge.Provider using the Active24 API
type DNSProvider struct {
	config *config.Config
	client *active24.Client
	waiter waiter
	logger *logrus.Entry
}

var (
	_ challenge.Provider        = (*DNSProvider)(nil)
	_ challenge.ProviderTimeout = (*DNSProvider)(nil)
)

// NewDNSProvider creates a provider configured from the environment,
// honoring the INI credentials file when ACTIVE24_CREDENTIALS is set
func NewDNSProvider() (*DNSProvider, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("active24: %w", err)
	}
	return NewDNSProviderConfig(cfg)
}

// NewDNSProviderConfig creates a provider from an explicit configuration
func NewDNSProviderConfig(cfg *config.Config) (*DNSProvider, error) {
	if cfg == nil {
		return nil, errors.New("active24: config is nil")
	}
	if cfg.APIKey == "" || cfg.Secret == "" {
		return nil, errors.New("active24: API key and secret are required")
	}

	client := active24.NewClient(
		cfg.APIKey,
		cfg.Secret,
		cfg.BaseURL,
		time.Duration(cfg.HTTPTimeoutSec)*time.Second,
		logrus.WithField("component", "active24-client"),
	)

	checker, err := propagation.New(&propagation.Config{
		Nameservers: cfg.Nameservers,
		Interval:    time.Duration(cfg.PollingIntervalSec) * time.Second,
		Logger:      logrus.WithField("component", "propagation"),
	})
	if err != nil {
		return nil, fmt.Errorf("active24: %w", err)
	}

	return &DNSProvider{
		config: cfg,
		client: client,
		waiter: checker,
		logger: logrus.WithField("component", "active24dns"),
	}, nil
}

// Present creates the challenge TXT record and waits until it has
// propagated to all authoritative nameservers of the zone
func (d *DNSProvider) Present(domain, token, keyAuth string) error {
	info := dns01.GetChallengeInfo(domain, keyAuth)
	fqdn := dns01.UnFqdn(info.EffectiveFQDN)

	ctx := context.Background()

	svc, err := d.client.FindService(ctx, fqdn)
	if err != nil {
		return fmt.Errorf("active24: failed to locate zone for %s: %w", fqdn, err)
	}

	name := dnsname.Relative(fqdn, svc.Name)
	if err := d.client.CreateTXTRecord(ctx, svc.ID, name, info.Value, d.config.TTL); err != nil {
		return fmt.Errorf("active24: failed to create TXT record: %w", err)
	}

	if d.config.SkipPropagationCheck {
		return nil
	}

	timeout, _ := d.Timeout()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := d.waiter.Wait(waitCtx, info.EffectiveFQDN, info.Value); err != nil {
		return fmt.Errorf("active24: %w", err)
	}

	return nil
}

// CleanUp removes the challenge TXT record, matching on both name and
// value so records created by concurrent challenges are not disturbed.
// Failures are logged and swallowed: a stale TXT record is harmless,
// while failing the host flow after a successful validation is not.
func (d *DNSProvider) CleanUp(domain, token, keyAuth string) error {
	info := dns01.GetChallengeInfo(domain, keyAuth)
	fqdn := dns01.UnFqdn(info.EffectiveFQDN)

	ctx := context.Background()

	svc, err := d.client.FindService(ctx, fqdn)
	if err != nil {
		d.logger.WithError(err).WithField("fqdn", fqdn).Warn("Cleanup: failed to locate zone, leaving record behind")
		return nil
	}

	name := dnsname.Relative(fqdn, svc.Name)
	record, err := d.client.FindTXTRecord(ctx, svc.ID, name, info.Value)
	if err != nil {
		if errors.Is(err, active24.ErrRecordNotFound) {
			d.logger.WithField("fqdn", fqdn).Debug("Cleanup: record already gone")
		} else {
			d.logger.WithError(err).WithField("fqdn", fqdn).Warn("Cleanup: failed to find TXT record")
		}
		return nil
	}

	if err := d.client.DeleteRecord(ctx, svc.ID, record.ID); err != nil && !errors.Is(err, active24.ErrRecordNotFound) {
		d.logger.WithError(err).WithField("fqdn", fqdn).Warn("Cleanup: failed to delete TXT record")
	}

	return nil
}

// Timeout reports the propagation wait limit and polling interval to
// the host framework. A zero configured timeout means the provider is
// willing to wait up to an hour.
func (d *DNSProvider) Timeout() (time.Duration, time.Duration) {
	timeout := time.Duration(d.config.PropagationTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = propagation.MaxWait
	}
	return timeout, time.Duration(d.config.PollingIntervalSec) * time.Second
}
