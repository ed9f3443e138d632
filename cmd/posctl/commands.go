package main

import (
	"context"
	"fmt"

	"go-pos-ws/internal/service"
	"go-pos-ws/pkg/config"
	"go-pos-ws/pkg/jwt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <transaction-id>",
	Short: "Print a stored transaction with its display number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid transaction id: %w", err)
		}
		return withBackend(cmd, func(ctx context.Context, b *backend) error {
			view, err := b.pos.Get(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		})
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <transaction-id>",
	Short: "Mark a paid transaction as completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid transaction id: %w", err)
		}
		return withBackend(cmd, func(ctx context.Context, b *backend) error {
			view, err := b.pos.Complete(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", view.Number, view.Status)
			return nil
		})
	},
}

var (
	taxEnabled    bool
	taxPercentage string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read or change store settings",
}

var settingsTaxCmd = &cobra.Command{
	Use:   "tax",
	Short: "Show the tax setting, or change it with --enabled/--percentage",
	RunE: func(cmd *cobra.Command, args []string) error {
		var update service.SettingsUpdate
		if cmd.Flags().Changed("enabled") {
			update.TaxEnabled = &taxEnabled
		}
		if cmd.Flags().Changed("percentage") {
			pct, err := decimal.NewFromString(taxPercentage)
			if err != nil {
				return fmt.Errorf("invalid percentage: %w", err)
			}
			update.TaxPercentage = &pct
		}

		return withBackend(cmd, func(ctx context.Context, b *backend) error {
			if update.TaxEnabled != nil || update.TaxPercentage != nil {
				if _, err := b.settings.UpdateStoreSettings(ctx, update, service.Actor{ID: "posctl", Name: "posctl"}); err != nil {
					return err
				}
			}
			setting, err := b.settings.GetStoreSettings(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enabled=%t percentage=%s\n", setting.TaxEnabled, setting.TaxPercentage.String())
			return nil
		})
	},
}

var (
	tokenCashierID   string
	tokenCashierName string
	tokenPrivileges  []string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a cashier bearer token signed with POS_JWT_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		token, err := jwt.NewSigner(cfg.JWT.Secret, cfg.JWT.TTL).GenerateToken(tokenCashierID, tokenCashierName, tokenPrivileges)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	settingsTaxCmd.Flags().BoolVar(&taxEnabled, "enabled", false, "Charge tax on sales")
	settingsTaxCmd.Flags().StringVar(&taxPercentage, "percentage", "", "Tax percentage between 0 and 100")
	settingsCmd.AddCommand(settingsTaxCmd)

	tokenCmd.Flags().StringVar(&tokenCashierID, "cashier-id", "", "Cashier id carried in the token")
	tokenCmd.Flags().StringVar(&tokenCashierName, "name", "", "Cashier display name")
	tokenCmd.Flags().StringSliceVar(&tokenPrivileges, "privilege", nil, "Privilege to grant (repeatable)")
	_ = tokenCmd.MarkFlagRequired("cashier-id")
}
