package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/techaura/aurabot/internal/config"
	"github.com/techaura/aurabot/internal/version"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show effective configuration and environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			fmt.Println(version.Info())
			fmt.Println()
			fmt.Printf("Config file:  %s\n", paths.Config)
			fmt.Printf("Data dir:     %s\n", paths.Data)
			fmt.Println()
			fmt.Printf("Gateway:      enabled=%v bind=%s port=%d\n",
				cfg.Gateway.Enabled, cfg.Gateway.Bind, cfg.Gateway.Port)
			if cfg.Gateway.Token == "" {
				fmt.Println("              no token configured, API requests will be refused")
			}
			fmt.Printf("Store:        backend=%s path=%s\n",
				cfg.Store.Backend, paths.DBPath(cfg.Store.Path))
			if cfg.TechAura.BaseURL != "" {
				fmt.Printf("TechAura:     %s\n", cfg.TechAura.BaseURL)
			} else {
				fmt.Println("TechAura:     not configured")
			}
			fmt.Printf("Engine:       channel=%s hours=%d-%d caps=%d/wk %d/lifetime\n",
				cfg.Engine.Channel,
				cfg.Engine.BusinessHourStart, cfg.Engine.BusinessHourEnd,
				cfg.Engine.WeeklyCap, cfg.Engine.LifetimeCap)

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Println()
				fmt.Printf("%d validation issue(s):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  %s: %s\n", issue.Path, issue.Message)
				}
			}
			return nil
		},
	}
}
