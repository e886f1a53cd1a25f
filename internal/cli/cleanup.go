package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"active24dns/internal/active24"
	"active24dns/internal/dnsname"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup <fqdn> <value>",
	Short: "Remove a challenge TXT record",
	Long:  "Delete the TXT record created for a DNS-01 challenge. The record is matched on both name and value so unrelated records stay untouched.",
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
		record, err := client.FindTXTRecord(ctx, svc.ID, name, value)
		if err != nil {
			if errors.Is(err, active24.ErrRecordNotFound) {
				fmt.Printf("No TXT record %s with the given value in zone %s\n", name, svc.Name)
				return nil
			}
			return err
		}

		if err := client.DeleteRecord(ctx, svc.ID, record.ID); err != nil && !errors.Is(err, active24.ErrRecordNotFound) {
			return err
		}
		fmt.Printf("Deleted TXT record %s from zone %s\n", name, svc.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
