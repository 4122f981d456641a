// Package cli implements posctl, an operator tool for poking vendor adapters
// and managing restaurant records with the gateway's configuration.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/service"
	"github.com/example/pos-gateway/internal/tenant"
	"github.com/example/pos-gateway/internal/vendors"
)

// Session is what commands run against.
type Session struct {
	Factory *vendors.Factory
	// Tenants is nil when restaurant records are read-only.
	Tenants *tenant.Registrar
	Close   func() error
}

// Opener wires a Session from configuration.
type Opener func(ctx context.Context) (*Session, error)

type globals struct {
	vendor     string
	restaurant string
	tableToken string
	jsonOut    bool
}

// NewRootCommand returns the posctl command tree.
func NewRootCommand(open Opener) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:          "posctl",
		Short:        "Inspect restaurant POS adapters",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.vendor, "vendor", "", "Vendor for single-tenant mode (defaults to POS_TYPE)")
	root.PersistentFlags().StringVar(&g.restaurant, "restaurant", "", "Restaurant id for tenant mode")
	root.PersistentFlags().StringVar(&g.tableToken, "table-token", "", "Table token for tenant mode")
	root.PersistentFlags().BoolVar(&g.jsonOut, "json", false, "Output JSON")

	root.AddCommand(newAdaptersCommand(g))
	root.AddCommand(newAuthCommand(g, open))
	root.AddCommand(newLocationsCommand(g, open))
	root.AddCommand(newOrdersCommand(g, open))
	root.AddCommand(newTenantsCommand(g, open))
	return root
}

// withSession opens a Session for the duration of fn.
func withSession(cmd *cobra.Command, open Opener, fn func(ctx context.Context, sess *Session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sess, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if sess.Close != nil {
			_ = sess.Close()
		}
	}()
	return fn(ctx, sess)
}

// withService resolves the adapter selected by the global flags and runs fn.
func (g *globals) withService(cmd *cobra.Command, open Opener, fn func(ctx context.Context, svc *service.POSService) error) error {
	return withSession(cmd, open, func(ctx context.Context, sess *Session) error {
		svc, err := service.ForSelector(ctx, sess.Factory, vendors.Selector{
			Vendor:       g.vendor,
			RestaurantID: g.restaurant,
			TableToken:   g.tableToken,
		})
		if err != nil {
			return err
		}
		return fn(ctx, svc)
	})
}

func newAdaptersCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List registered vendor adapters",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := vendors.Available()
			if g.jsonOut {
				return printJSON(cmd.OutOrStdout(), infos)
			}
			for _, info := range infos {
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", info.Name, info.Description)
			}
			return nil
		},
	}
}

func newAuthCommand(g *globals, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Check the selected credentials against the vendor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withService(cmd, open, func(ctx context.Context, svc *service.POSService) error {
				ok := svc.Authenticate(ctx)
				if g.jsonOut {
					return printJSON(cmd.OutOrStdout(), map[string]any{"vendor": svc.Vendor(), "authenticated": ok})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s authenticated: %v\n", svc.Vendor(), ok)
				if !ok {
					return fmt.Errorf("%s rejected the credentials", svc.Vendor())
				}
				return nil
			})
		},
	}
}

func newLocationsCommand(g *globals, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "locations",
		Short: "List vendor locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withService(cmd, open, func(ctx context.Context, svc *service.POSService) error {
				locs, err := svc.ListLocations(ctx)
				if err != nil {
					return err
				}
				if g.jsonOut {
					return printJSON(cmd.OutOrStdout(), pos.Normalize(locs))
				}
				for _, loc := range locs {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", loc.ID, zeroDefault(loc.Name, "-"), zeroDefault(loc.Status, "-"))
				}
				return nil
			})
		},
	}
}

func newOrdersCommand(g *globals, open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Read vendor orders",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <order-id>",
		Short: "Retrieve one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withService(cmd, open, func(ctx context.Context, svc *service.POSService) error {
				order, err := svc.RetrieveOrder(ctx, args[0])
				if err != nil {
					return err
				}
				if g.jsonOut {
					return printJSON(cmd.OutOrStdout(), pos.Normalize(order))
				}
				printOrder(cmd.OutOrStdout(), *order)
				return nil
			})
		},
	})

	var req pos.SearchOrdersRequest
	var states, sources, locations string
	search := &cobra.Command{
		Use:   "search",
		Short: "Search orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.States = splitCSV(states)
			req.SourceNames = splitCSV(sources)
			req.LocationIDs = splitCSV(locations)
			return g.withService(cmd, open, func(ctx context.Context, svc *service.POSService) error {
				res, err := svc.SearchOrders(ctx, req)
				if err != nil {
					return err
				}
				if g.jsonOut {
					return printJSON(cmd.OutOrStdout(), pos.Normalize(res))
				}
				for _, order := range res.Orders {
					printOrder(cmd.OutOrStdout(), order)
				}
				for _, entry := range res.Entries {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  v%d  %s\n", entry.OrderID, entry.Version, zeroDefault(entry.ClosedAt, "-"))
				}
				if res.Cursor != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "next cursor: %s\n", res.Cursor)
				}
				return nil
			})
		},
	}
	search.Flags().StringVar(&states, "states", "", "Comma-separated states: OPEN,COMPLETED,CANCELED")
	search.Flags().StringVar(&sources, "sources", "", "Comma-separated source names")
	search.Flags().StringVar(&locations, "locations", "", "Comma-separated location ids")
	search.Flags().StringVar(&req.ClosedAtStart, "closed-after", "", "RFC3339 lower bound on closed_at")
	search.Flags().StringVar(&req.ClosedAtEnd, "closed-before", "", "RFC3339 upper bound on closed_at")
	search.Flags().IntVar(&req.Limit, "limit", 0, "Page size")
	search.Flags().StringVar(&req.Cursor, "cursor", "", "Cursor from a previous page")
	search.Flags().BoolVar(&req.ReturnEntries, "entries", false, "Return order entries instead of full orders")
	cmd.AddCommand(search)
	return cmd
}

func newTenantsCommand(g *globals, open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Manage restaurant credentials",
	}
	var t tenant.Tenant
	var tokens string
	put := &cobra.Command{
		Use:   "put <restaurant-id>",
		Short: "Create or replace a restaurant record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t.RestaurantID = args[0]
			t.TableTokens = splitCSV(tokens)
			return withSession(cmd, open, func(ctx context.Context, sess *Session) error {
				if sess.Tenants == nil {
					return fmt.Errorf("tenant records are read-only: configure DATABASE_URL")
				}
				if err := sess.Tenants.Put(ctx, t); err != nil {
					return err
				}
				if g.jsonOut {
					return printJSON(cmd.OutOrStdout(), map[string]any{"restaurant_id": t.RestaurantID, "stored": true})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s (%s, %d table tokens)\n", t.RestaurantID, t.Vendor, len(t.TableTokens))
				return nil
			})
		},
	}
	f := put.Flags()
	f.StringVar(&t.Name, "name", "", "Display name")
	f.StringVar(&t.Vendor, "pos-type", "", "Vendor: square, clover, ncr or mock")
	f.StringVar(&t.AccessToken, "access-token", "", "Vendor access token")
	f.StringVar(&t.SecretKey, "secret-key", "", "Vendor secret key (NCR)")
	f.StringVar(&t.LocationID, "location-id", "", "Location id")
	f.StringVar(&t.MerchantID, "merchant-id", "", "Merchant id")
	f.StringVar(&t.OrganizationID, "organization-id", "", "Organization id (NCR)")
	f.StringVar(&t.Environment, "environment", "", "sandbox or production")
	f.StringVar(&t.Currency, "currency", "", "Default currency")
	f.BoolVar(&t.Disabled, "disabled", false, "Store the restaurant as inactive")
	f.StringVar(&tokens, "table-tokens", "", "Comma-separated table tokens")
	cmd.AddCommand(put)
	return cmd
}

func printOrder(w io.Writer, o pos.Order) {
	fmt.Fprintf(w, "%s  %-9s  %d %s  %s\n", o.ID, o.State, o.Total, o.Currency, zeroDefault(o.SourceName, "-"))
	for _, li := range o.LineItems {
		fmt.Fprintf(w, "  %dx %s @ %d\n", li.Quantity, zeroDefault(li.Name, li.CatalogObjectID), li.UnitPrice)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func zeroDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
