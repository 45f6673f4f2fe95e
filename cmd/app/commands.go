package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	dbm "zapmenu/internal/models/db_models"
	"zapmenu/internal/services"
	"zapmenu/pkg/utils"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [merchant-id]",
	Short: "Reconcile one merchant, or sweep every merchant past due",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var reconciler services.ReconciliationServiceInterface
		return runWith(cmd.Context(), func() error {
			if len(args) == 0 {
				report, err := reconciler.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d, transitions %d, failures %d\n", report.Scanned, report.Transitions, report.Failures)
				return nil
			}

			merchantID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid merchant id: %w", err)
			}
			result, err := reconciler.Reconcile(cmd.Context(), merchantID)
			if err != nil {
				return err
			}
			if result.Changed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", merchantID, result.From, result.To)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (unchanged)\n", merchantID, result.From)
			}
			return nil
		}, &reconciler)
	},
}

var (
	grantMonths   int
	grantLifetime bool
	grantUntil    string
)

var grantCmd = &cobra.Command{
	Use:   "grant <merchant-id>",
	Short: "Grant free access to a merchant",
	Long: `Grant free access to a merchant. The due date is reset, not extended.

Examples:
  zapmenu grant 7f1c... --months 3
  zapmenu grant 7f1c... --lifetime
  zapmenu grant 7f1c... --until 2026-12-31`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		merchantID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid merchant id: %w", err)
		}
		raw, err := utils.DueDateFromAny(grantUntil)
		if err != nil {
			return err
		}
		until, err := utils.ParseDueDate(raw)
		if err != nil {
			return fmt.Errorf("invalid --until: %w", err)
		}
		set := 0
		for _, given := range []bool{grantMonths > 0, grantLifetime, until != nil} {
			if given {
				set++
			}
		}
		if set != 1 {
			return errors.New("pass exactly one of --months, --lifetime or --until")
		}

		var admin services.AdminServiceInterface
		return runWith(cmd.Context(), func() error {
			merchant, err := admin.GrantOverride(cmd.Context(), "cli", merchantID, services.GrantInput{
				Months:   grantMonths,
				Lifetime: grantLifetime,
				Until:    until,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Granted %s until %s\n", merchantID, merchant.Subscription.NextDueDate.Format("2006-01-02"))
			return nil
		}, &admin)
	},
}

var statusSet string

var statusCmd = &cobra.Command{
	Use:   "status <merchant-id>",
	Short: "Print a merchant's subscription, optionally forcing its status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		merchantID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid merchant id: %w", err)
		}

		var (
			subscriptions services.SubscriptionServiceInterface
			admin         services.AdminServiceInterface
		)
		return runWith(cmd.Context(), func() error {
			if statusSet != "" {
				if _, err := admin.SetStatus(cmd.Context(), "cli", merchantID, dbm.SubscriptionStatus(statusSet)); err != nil {
					return err
				}
			}

			view, err := subscriptions.GetSubscriptionStatus(cmd.Context(), merchantID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		}, &subscriptions, &admin)
	},
}

func init() {
	grantCmd.Flags().IntVar(&grantMonths, "months", 0, "months of free access from today")
	grantCmd.Flags().BoolVar(&grantLifetime, "lifetime", false, "grant lifetime (VIP) access")
	grantCmd.Flags().StringVar(&grantUntil, "until", "", "grant access until this date (YYYY-MM-DD or RFC3339)")
	statusCmd.Flags().StringVar(&statusSet, "set", "", "force status: active or suspended")
}
