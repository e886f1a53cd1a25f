package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"active24dns/internal/active24"
	"active24dns/internal/config"
	"active24dns/internal/dnsname"
	"active24dns/internal/propagation"
)

var presentWait bool

var presentCmd = &cobra.Command{
	Use:   "present <fqdn> <value>",
	Short: "Publish a challenge TXT record",
	Long:  "Create the TXT record for a DNS-01 challenge and optionally wait until it is visible on the authoritative nameservers.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fqdn, value := args[0], args[1]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client := newAPIClient(cfg)
		ctx := cmd.Context()

		svc, err := client.FindService(ctx, fqdn)
		if err != nil {
			return err
		}

		name := dnsname.Relative(fqdn, svc.Name)
		if err := client.CreateTXTRecord(ctx, svc.ID, name, value, cfg.TTL); err != nil {
			return err
		}
		fmt.Printf("Created TXT record %s in zone %s\n", name, svc.Name)

		if !presentWait {
			return nil
		}

		checker, err := propagation.New(&propagation.Config{
			Nameservers: cfg.Nameservers,
			Interval:    time.Duration(cfg.PollingIntervalSec) * time.Second,
			Logger:      logrus.WithField("component", "propagation"),
		})
		if err != nil {
			return err
		}

		timeout := time.Duration(cfg.PropagationTimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = propagation.MaxWait
		}
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := checker.Wait(waitCtx, fqdn, value); err != nil {
			return err
		}
		fmt.Println("Record visible on all authoritative nameservers")
		return nil
	},
}

func init() {
	presentCmd.Flags().BoolVarP(&presentWait, "wait", "w", false, "Wait for propagation after creating the record")
	rootCmd.AddCommand(presentCmd)
}

func newAPIClient(cfg *config.Config) *active24.Client {
	return active24.NewClient(
		cfg.APIKey,
		cfg.Secret,
		cfg.BaseURL,
		time.Duration(cfg.HTTPTimeoutSec)*time.Second,
		logrus.WithField("component", "active24-client"),
	)
}
