package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "List DNS zones of the account",
	Long:  "List the domain services of the authenticated Active24 account that can hold challenge records.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client := newAPIClient(cfg)
		services, err := client.ListServices(cmd.Context())
		if err != nil {
			return err
		}

		count := 0
		for _, svc := range services {
			if svc.ServiceName != "domain" {
				continue
			}
			fmt.Printf("%d\t%s\n", svc.ID, svc.Name)
			count++
		}
		if count == 0 {
			fmt.Println("No DNS zones found")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(zonesCmd)
}
