package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"boxrental-backend/internal/app"
	"boxrental-backend/internal/config"
	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/logger"
	"boxrental-backend/internal/pricing"
	"boxrental-backend/internal/repository/postgres"
	"boxrental-backend/internal/security"
	"boxrental-backend/internal/service"
	"boxrental-backend/internal/tracking"

	"github.com/spf13/cobra"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := app.OpenDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.NewStore(db, 0).Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to apply schema: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
}

func priceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Quote a box count and rental length against the price list",
		Example: "  boxctl price --boxes 5 --days 14 --item cart=1\n" +
			"  boxctl price --boxes 12 --days 7 --use-config",
		RunE: func(cmd *cobra.Command, args []string) error {
			boxes, _ := cmd.Flags().GetInt32("boxes")
			days, _ := cmd.Flags().GetInt32("days")
			discount, _ := cmd.Flags().GetInt64("discount")
			rawItems, _ := cmd.Flags().GetStringSlice("item")
			useConfig, _ := cmd.Flags().GetBool("use-config")

			items, err := parseItems(rawItems)
			if err != nil {
				return err
			}

			table := pricing.DefaultTable()
			if useConfig {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				if table, err = cfg.PricingTable(); err != nil {
					return err
				}
			}

			q, err := table.Quote(pricing.QuoteRequest{BoxCount: boxes, Days: days, Discount: discount, Items: items})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Boxes:       %d for %d days\n", q.BoxCount, q.Days)
			fmt.Fprintf(out, "Period rate: %d\n", q.PeriodRate)
			fmt.Fprintf(out, "Boxes total: %d\n", q.BoxesAmount)
			for _, li := range q.LineItems {
				fmt.Fprintf(out, "  %-10s %d x %d = %d\n", li.Name, li.Quantity, li.UnitPrice, li.Total())
			}
			if q.Discount > 0 {
				fmt.Fprintf(out, "Discount:    -%d\n", q.Discount)
			}
			fmt.Fprintf(out, "Total:       %d\n", q.TotalAmount)
			fmt.Fprintf(out, "Guarantee:   %d\n", q.GuaranteeAmount)
			return nil
		},
	}
	cmd.Flags().Int32("boxes", 0, "Number of boxes")
	cmd.Flags().Int32("days", 7, "Rental length in days")
	cmd.Flags().Int64("discount", 0, "Flat discount")
	cmd.Flags().StringSlice("item", nil, "Add-on product as name=quantity (repeatable)")
	cmd.Flags().Bool("use-config", false, "Price against the configured table instead of the defaults")
	_ = cmd.MarkFlagRequired("boxes")
	return cmd
}

func parseItems(raw []string) ([]pricing.ItemRequest, error) {
	var items []pricing.ItemRequest
	for _, r := range raw {
		name, qty, ok := strings.Cut(r, "=")
		if !ok {
			qty = "1"
		}
		n, err := strconv.ParseInt(qty, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid item %q: quantity must be a number", r)
		}
		items = append(items, pricing.ItemRequest{Name: name, Quantity: int32(n)})
	}
	return items, nil
}

func fragmentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fragment <national-id>",
		Short: "Print the identity fragment derived from a national id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fragment, err := tracking.DeriveIdentityFragment(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), fragment)
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a staff member or customer",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if ttl == 0 {
				ttl = cfg.AccessTokenTTL()
			}
			tm := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, ttl)
			token, err := tm.GenerateAccessToken(userID, domain.Role(role))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64("user", 0, "User id the token is issued to")
	cmd.Flags().String("role", string(domain.RoleStaff), "Role: customer, staff or admin")
	cmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to the configured expiry)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func boxCmd() *cobra.Command {
	box := &cobra.Command{
		Use:   "box",
		Short: "Manage the box inventory",
	}

	add := &cobra.Command{
		Use:   "add <barcode>...",
		Short: "Register boxes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, _ := cmd.Flags().GetString("size")
			condition, _ := cmd.Flags().GetString("condition")
			location, _ := cmd.Flags().GetString("location")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			engine, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			for _, barcode := range args {
				b, err := engine.Service.RegisterBox(ctx, domain.SystemCaller, service.RegisterBoxRequest{
					Barcode:   barcode,
					Size:      domain.BoxSize(size),
					Condition: domain.BoxCondition(condition),
					Location:  location,
				})
				if err != nil {
					return fmt.Errorf("register %s: %w", barcode, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n", b.ID, b.Barcode, b.Size, b.Status)
			}
			return nil
		},
	}
	add.Flags().String("size", string(domain.BoxSizeMedium), "Box size: small, medium or large")
	add.Flags().String("condition", string(domain.BoxConditionGood), "Box condition")
	add.Flags().String("location", "", "Warehouse location")

	box.AddCommand(add)
	return box
}
