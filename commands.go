package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"collectibles-market/models"
	"collectibles-market/services"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "collectibles-market",
		Short:         "Price collectibles from marketplace comparables and manage their listings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newPriceCmd(),
		newPublishCmd(),
		newEndCmd(),
		newRelistCmd(),
		newConfirmCmd(),
		newOrphansCmd(),
		newCacheCmd(),
		newAuthCmd(),
	)
	return root
}

// withApp loads configuration, runs fn with a signal-aware context and
// closes every resource fn opened.
func withApp(fn func(ctx context.Context, a *app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newPriceCmd() *cobra.Command {
	var (
		item      models.Item
		purpose   string
		mode      string
		user      string
		force     bool
		minSample int
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Estimate an item's price from comparable listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if item.Ref == "" {
					item.Ref = strings.ToLower(strings.Join(strings.Fields(item.Name), "-"))
				}
				svc, err := a.pricingService(ctx)
				if err != nil {
					return err
				}
				res, err := svc.Estimate(ctx, services.PriceRequest{
					Item:         item,
					Purpose:      models.Purpose(purpose),
					Mode:         models.SearchMode(mode),
					UserID:       user,
					ForceRefresh: force,
					MinSample:    minSample,
				})
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(res)
				}
				services.PrintReport(os.Stdout, res)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&item.Ref, "ref", "", "item reference")
	f.StringVar(&item.Name, "name", "", "item name (required)")
	f.StringVar(&item.Year, "year", "", "year")
	f.StringVar(&item.Series, "series", "", "set or series")
	f.StringVar(&item.Number, "number", "", "card number")
	f.StringVar(&item.Variant, "variant", "", "variant or parallel")
	f.StringVar(&item.GradingCompany, "company", "", "grading company")
	f.StringVar(&item.Grade, "grade", "", "grade, e.g. 9 or \"PSA 9\"")
	f.StringVar(&item.SerialNumber, "serial", "", "serial number, e.g. 12/99")
	f.StringVar(&item.Category, "category", "", "category, e.g. pokemon")
	f.StringVar(&item.Condition, "condition", "", "raw condition")
	f.StringVar(&purpose, "purpose", "", "raw or graded:<COMPANY><GRADE>; defaults to the item's own grade")
	f.StringVar(&mode, "mode", string(models.ModeActive), "active or sold")
	f.StringVar(&user, "user", "", "caller id for quota accounting")
	f.BoolVar(&force, "force", false, "bypass the result cache")
	f.IntVar(&minSample, "min-sample", 0, "minimum accepted matches before the ladder stops")
	f.BoolVar(&asJSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// readRequests accepts a single listing request or an array of them.
func readRequests(path string) ([]models.ListingRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var reqs []models.ListingRequest
		if err := json.Unmarshal(data, &reqs); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return reqs, nil
	}
	var req models.ListingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return []models.ListingRequest{req}, nil
}

func newPublishCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "publish FILE",
		Short: "Publish the listing requests in a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := readRequests(args[0])
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				pub, err := a.publisher(ctx)
				if err != nil {
					return err
				}
				batch := services.NewBatchPublisher(pub, a.cfg.Publishing, a.logger)
				res := batch.PublishBatch(ctx, user, reqs)
				if err := printJSON(res); err != nil {
					return err
				}
				if n := len(res.Failed()); n > 0 {
					return fmt.Errorf("%d of %d listings failed", n, len(reqs))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "seller id whose marketplace account is used")
	return cmd
}

func newEndCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "end RECORD_ID",
		Short: "End a live listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				pub, err := a.publisher(ctx)
				if err != nil {
					return err
				}
				rec, err := pub.End(ctx, args[0], models.EndReason(reason))
				if err != nil {
					return err
				}
				return printJSON(rec)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", string(models.EndNotAvailable),
		"NotAvailable, Incorrect, LostOrBroken, OtherListingError or SellToHighBidder")
	return cmd
}

func newRelistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relist RECORD_ID FILE",
		Short: "End a live listing and publish the request in FILE in its place",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := readRequests(args[1])
			if err != nil {
				return err
			}
			if len(reqs) != 1 {
				return fmt.Errorf("relist takes exactly one listing request, got %d", len(reqs))
			}
			return withApp(func(ctx context.Context, a *app) error {
				pub, err := a.publisher(ctx)
				if err != nil {
					return err
				}
				rec, err := pub.Relist(ctx, args[0], reqs[0])
				if err != nil {
					return err
				}
				return printJSON(rec)
			})
		},
	}
}

func newConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm RECORD_ID",
		Short: "Re-check a published listing and mark it active once it is live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				pub, err := a.publisher(ctx)
				if err != nil {
					return err
				}
				rec, err := pub.Confirm(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(rec)
			})
		},
	}
}

func newOrphansCmd() *cobra.Command {
	var (
		cleanup   bool
		olderThan time.Duration
	)
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List, and optionally clean up, listings interrupted before publication",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				pub, err := a.publisher(ctx)
				if err != nil {
					return err
				}
				grace := olderThan
				if grace <= 0 {
					grace = a.cfg.Publishing.OrphanGracePeriod
				}
				orphans, err := pub.FindOrphans(ctx, time.Now().Add(-grace))
				if err != nil {
					return err
				}
				a.logger.Info("Found %d orphaned listings", len(orphans))
				if cleanup {
					for _, rec := range orphans {
						if err := pub.CleanupOrphan(ctx, rec); err != nil {
							a.logger.Error("Cleanup of %s failed: %v", rec.ID, err)
						}
					}
				}
				return printJSON(orphans)
			})
		},
	}
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "delete remote leftovers and mark the records failed")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "grace period (default ORPHAN_GRACE_PERIOD)")
	return cmd
}

func newCacheCmd() *cobra.Command {
	cache := &cobra.Command{Use: "cache", Short: "Maintain the local result cache"}
	cache.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Delete expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				bs, err := a.boltStore()
				if err != nil {
					return err
				}
				n, err := bs.Sweep(ctx)
				if err != nil {
					return err
				}
				a.logger.Info("Removed %d expired cache entries", n)
				return nil
			})
		},
	})
	return cache
}

func newAuthCmd() *cobra.Command {
	auth := &cobra.Command{Use: "auth", Short: "Connect a seller's marketplace account"}
	auth.AddCommand(
		&cobra.Command{
			Use:   "url STATE",
			Short: "Print the consent URL a seller opens to grant access",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(func(ctx context.Context, a *app) error {
					ts, err := a.tokenSupplier()
					if err != nil {
						return err
					}
					fmt.Println(ts.AuthCodeURL(args[0]))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "exchange USER CODE",
			Short: "Store the tokens for an authorization code",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(func(ctx context.Context, a *app) error {
					ts, err := a.tokenSupplier()
					if err != nil {
						return err
					}
					return ts.Exchange(ctx, args[0], args[1])
				})
			},
		},
		&cobra.Command{
			Use:   "disconnect USER",
			Short: "Forget a seller's tokens",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(func(ctx context.Context, a *app) error {
					ts, err := a.tokenSupplier()
					if err != nil {
						return err
					}
					return ts.Disconnect(ctx, args[0])
				})
			},
		},
	)
	return auth
}
