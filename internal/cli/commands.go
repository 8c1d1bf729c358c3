package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	pb "github.com/abgdnv/verdant/pkg/api/storefront/v1"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

func newProductsCommand(o *options) *cobra.Command {
	var (
		req                pb.QueryProductsRequest
		minPrice, maxPrice float64
	)
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List catalog products matching the filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("min") {
				req.MinPrice = &minPrice
			}
			if cmd.Flags().Changed("max") {
				req.MaxPrice = &maxPrice
			}
			return call(cmd, o, func(ctx context.Context, c pb.StorefrontClient) (*pb.QueryProductsResponse, error) {
				return c.QueryProducts(ctx, &req)
			}, renderProducts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Search, "search", "", "case-insensitive text search")
	f.StringSliceVar(&req.Categories, "category", nil, "categories to include")
	f.StringSliceVar(&req.Materials, "material", nil, "materials to include")
	f.StringSliceVar(&req.Certifications, "certification", nil, "certifications to include")
	f.Float64Var(&minPrice, "min", 0, "minimum price")
	f.Float64Var(&maxPrice, "max", 500, "maximum price")
	f.StringVar(&req.SortBy, "sort", "name", "sort order: name, price-low, price-high or sustainability")
	return cmd
}

func newProductCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "product <id>",
		Short: "Show one product with its material sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return call(cmd, o, func(ctx context.Context, c pb.StorefrontClient) (*pb.GetProductResponse, error) {
				return c.GetProduct(ctx, &pb.GetProductRequest{ID: id})
			}, renderProduct)
		},
	}
}

func newFacetsCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "facets",
		Short: "List the categories, materials and certifications available for filtering",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, o, func(ctx context.Context, c pb.StorefrontClient) (pb.Facets, error) {
				resp, err := c.QueryProducts(ctx, &pb.QueryProductsRequest{})
				if err != nil {
					return pb.Facets{}, err
				}
				return resp.Facets, nil
			}, renderFacets)
		},
	}
}

func newCartCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the cart of the current session",
	}
	cartCall := func(cmd *cobra.Command, fn func(ctx context.Context, c pb.StorefrontClient) (*pb.Cart, error)) error {
		return call(cmd, o, fn, renderCart)
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the cart",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return cartCall(cmd, func(ctx context.Context, c pb.StorefrontClient) (*pb.Cart, error) {
					return c.GetCart(ctx, &pb.GetCartRequest{SessionID: o.session})
				})
			},
		},
		&cobra.Command{
			Use:   "add <product-id> <size>",
			Short: "Add one unit of a product in a size",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return cartCall(cmd, func(ctx context.Context, c pb.StorefrontClient) (*pb.Cart, error) {
					return c.AddItem(ctx, &pb.AddItemRequest{SessionID: o.session, ProductID: id, Size: args[1]})
				})
			},
		},
		&cobra.Command{
			Use:   "qty <product-id> <size> <quantity>",
			Short: "Set the quantity of a line; 0 removes it",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				qty, err := strconv.Atoi(args[2])
				if err != nil {
					return fmt.Errorf("invalid quantity %q", args[2])
				}
				return cartCall(cmd, func(ctx context.Context, c pb.StorefrontClient) (*pb.Cart, error) {
					return c.UpdateQuantity(ctx, &pb.UpdateQuantityRequest{SessionID: o.session, ProductID: id, Size: args[1], Quantity: qty})
				})
			},
		},
		&cobra.Command{
			Use:   "remove <product-id> <size>",
			Short: "Remove a line",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return cartCall(cmd, func(ctx context.Context, c pb.StorefrontClient) (*pb.Cart, error) {
					return c.RemoveItem(ctx, &pb.RemoveItemRequest{SessionID: o.session, ProductID: id, Size: args[1]})
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Empty the cart",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return cartCall(cmd, func(ctx context.Context, c pb.StorefrontClient) (*pb.Cart, error) {
					return c.ClearCart(ctx, &pb.ClearCartRequest{SessionID: o.session})
				})
			},
		},
		&cobra.Command{
			Use:   "checkout",
			Short: "Place the order for everything in the cart",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return call(cmd, o, func(ctx context.Context, c pb.StorefrontClient) (*pb.CheckoutResponse, error) {
					return c.Checkout(ctx, &pb.CheckoutRequest{SessionID: o.session})
				}, renderReceipt)
			},
		},
	)
	return cmd
}

func newHealthCommand(o *options) *cobra.Command {
	var service string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check whether the storefront is serving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, closeFn, err := o.dialHealth()
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			resp, err := client.Check(cmd.Context(), &grpc_health_v1.HealthCheckRequest{Service: service}, grpc.CallContentSubtype(pb.CodecName))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if o.jsonOut {
				data, err := protojson.Marshal(resp)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}
			if _, err := fmt.Fprintln(out, resp.GetStatus()); err != nil {
				return err
			}
			if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
				return fmt.Errorf("storefront is %s", resp.GetStatus())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&service, "service", pb.ServiceName, "service name to check, empty for the whole server")
	return cmd
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid product id %q", raw)
	}
	return id, nil
}

func renderProducts(w io.Writer, resp *pb.QueryProductsResponse) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tCERTIFICATIONS")
	for _, p := range resp.Products {
		fmt.Fprintf(tw, "%d\t%s\t%s\t$%.2f\t%s\n", p.ID, p.Name, p.Category, p.Price, strings.Join(p.Certifications, ", "))
	}
	fmt.Fprintf(tw, "\n%d of %d products\n", resp.FilteredCount, resp.TotalCount)
	return tw.Flush()
}

func renderProduct(w io.Writer, resp *pb.GetProductResponse) error {
	p := resp.Product
	fmt.Fprintf(w, "%s (#%d)  $%.2f\n%s | %s\n\n%s\n", p.Name, p.ID, p.Price, p.Category, p.Sustainability, p.Story)
	if len(p.MaterialSources) > 0 {
		fmt.Fprintln(w, "\nMaterial sources:")
		for _, src := range p.MaterialSources {
			fmt.Fprintf(w, "  - %s from %s (%s)\n", src.Material, src.Origin, src.Certification)
		}
	}
	if p.SizingNote != "" {
		fmt.Fprintf(w, "\nSizing: %s\n", p.SizingNote)
	}
	return nil
}

func renderFacets(w io.Writer, f pb.Facets) error {
	fmt.Fprintf(w, "Categories:     %s\n", strings.Join(f.Categories, ", "))
	fmt.Fprintf(w, "Materials:      %s\n", strings.Join(f.Materials, ", "))
	fmt.Fprintf(w, "Certifications: %s\n", strings.Join(f.Certifications, ", "))
	return nil
}

func renderCart(w io.Writer, c *pb.Cart) error {
	if len(c.Items) == 0 {
		fmt.Fprintln(w, "Your cart is empty")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tQTY\tSUBTOTAL")
	for _, item := range c.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t$%.2f\n", item.ProductID, item.Name, item.Size, item.Quantity, item.Price*float64(item.Quantity))
	}
	fmt.Fprintf(tw, "\nTotal: %d items, $%.2f\n", c.TotalItems, c.TotalPrice)
	return tw.Flush()
}

func renderReceipt(w io.Writer, r *pb.CheckoutResponse) error {
	fmt.Fprintf(w, "Order Placed Successfully!\nOrder %s: %d items, $%.2f\n", r.OrderID, r.TotalItems, r.TotalPrice)
	return nil
}
