package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/techaura/aurabot/internal/config"
	"github.com/techaura/aurabot/internal/techaura"
)

func newOrdersCmd() *cobra.Command {
	var (
		page    int
		perPage int
	)

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List pending orders from the TechAura backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if cfg.TechAura.BaseURL == "" {
				return fmt.Errorf("techaura.baseUrl is not configured")
			}

			client, err := techaura.New(cfg.TechAura.BaseURL, cfg.TechAura.APIKey, log)
			if err != nil {
				return err
			}

			orders, err := client.PendingOrders(cmd.Context(), page, perPage)
			if err != nil {
				return err
			}
			if len(orders) == 0 {
				fmt.Println("no pending orders")
				return nil
			}

			for _, o := range orders {
				fmt.Printf("%-12s %-24s %-16s %s %s\n",
					o.OrderNumber, o.CustomerName, o.CustomerPhone,
					o.ProductType, o.Capacity)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page to fetch")
	cmd.Flags().IntVar(&perPage, "per-page", 20, "orders per page")
	return cmd
}
