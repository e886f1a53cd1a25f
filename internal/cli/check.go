package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"active24dns/internal/propagation"
)

var checkWait bool

var checkCmd = &cobra.Command{
	Use:   "check <fqdn> <value>",
	Short: "Check challenge record propagation",
	Long:  "Query the authoritative nameservers of the zone and report whether the TXT record holds the expected value on all of them.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fqdn, value := args[0], args[1]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		checker, err := propagation.New(&propagation.Config{
			Nameservers: cfg.Nameservers,
			Interval:    time.Duration(cfg.PollingIntervalSec) * time.Second,
			Logger:      logrus.WithField("component", "propagation"),
		})
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		if checkWait {
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
		}

		ok, err := checker.HasPropagated(ctx, fqdn, value)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("record %s is not yet visible on all authoritative nameservers", fqdn)
		}
		fmt.Println("Record visible on all authoritative nameservers")
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVarP(&checkWait, "wait", "w", false, "Poll until the record propagates instead of checking once")
	rootCmd.AddCommand(checkCmd)
}
