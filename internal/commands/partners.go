package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
)

func newPartnersCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "partners",
		Aliases: []string{"partner"},
		Short:   "Customers and suppliers",
	}
	cmd.AddCommand(newPartnersAddCommand(a), newPartnersListCommand(a))
	return cmd
}

func newPartnersAddCommand(a *app) *cobra.Command {
	var p model.Partner

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a partner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Name = args[0]
			return a.withLedger(cmd.Context(), func(s *session) error {
				partnerID, err := a.directory(s).Create(cmd.Context(), p)
				if err != nil {
					return err
				}
				a.record(s.name(), "partner.create", p.Name, 0)
				fmt.Fprintf(cmd.OutOrStdout(), "Added partner %d %s\n", partnerID, p.Name)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&p.VATID, "vat-id", "", "VAT id")
	f.StringVar(&p.Ext.Street, "street", "", "street address")
	f.StringVar(&p.Ext.PostalCode, "postal-code", "", "postal code")
	f.StringVar(&p.Ext.City, "city", "", "city")
	f.StringVar(&p.Ext.Country, "country", "", "country")
	f.StringVar(&p.Ext.Email, "email", "", "email")
	f.StringSliceVar(&p.IBANs, "iban", nil, "bank account (repeatable)")
	return cmd
}

func newPartnersListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List partners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(s *session) error {
				list, err := a.directory(s).List(cmd.Context())
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tNAME\tVAT ID\tCITY\tIBAN")
				for _, p := range list {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.VATID, p.Ext.City, strings.Join(p.IBANs, ", "))
				}
				return tw.Flush()
			})
		},
	}
}

// resolvePartner accepts a partner id or name. An empty ref is no partner.
func (a *app) resolvePartner(ctx context.Context, s *session, ref string) (*int64, error) {
	if ref == "" {
		return nil, nil
	}
	if n, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return &n, nil
	}
	p, ok, err := a.directory(s).FindByName(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledgererr.NotFoundError{Entity: "partner", ID: ref}
	}
	return &p.ID, nil
}

func newAllocationsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "allocations",
		Aliases: []string{"allocation"},
		Short:   "Cost centers, projects and tags",
	}
	cmd.AddCommand(newAllocationsAddCommand(a), newAllocationsListCommand(a), newAllocationsMoveCommand(a), newAllocationsDeleteCommand(a))
	return cmd
}

var allocationTypeKeys = map[string]model.AllocationType{
	"general":     model.AllocationGeneral,
	"cost-center": model.AllocationCostCenter,
	"project":     model.AllocationProject,
	"tag":         model.AllocationTag,
}

func allocationTypeName(t model.AllocationType) string {
	for k, v := range allocationTypeKeys {
		if v == t {
			return k
		}
	}
	return strconv.Itoa(int(t))
}

func parseParent(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	n, err := parseID("parent", s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func newAllocationsAddCommand(a *app) *cobra.Command {
	var typ, parent, nameEN, nameFI string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an allocation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := allocationTypeKeys[typ]
			if !ok {
				return ledgererr.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown allocation type %q", typ)}
			}
			p, err := parseParent(parent)
			if err != nil {
				return err
			}
			ext := model.AllocationExt{Name: map[string]string{}}
			if nameEN != "" {
				ext.Name["en"] = nameEN
			}
			if nameFI != "" {
				ext.Name["fi"] = nameFI
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				allocationID, err := a.tree(s).Create(cmd.Context(), t, p, ext)
				if err != nil {
					return err
				}
				a.record(s.name(), "allocation.create", fmt.Sprintf("%d %s", allocationID, nameEN), 0)
				fmt.Fprintf(cmd.OutOrStdout(), "Added allocation %d\n", allocationID)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&typ, "type", "cost-center", "general, cost-center, project or tag")
	f.StringVar(&parent, "parent", "", "parent allocation id")
	f.StringVar(&nameEN, "name", "", "English name")
	f.StringVar(&nameFI, "name-fi", "", "Finnish name")
	return cmd
}

func newAllocationsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List allocations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(s *session) error {
				list, err := a.tree(s).List(cmd.Context())
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tTYPE\tPARENT\tNAME")
				for _, al := range list {
					parent := ""
					if al.Parent != nil {
						parent = strconv.FormatInt(*al.Parent, 10)
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", al.ID, allocationTypeName(al.Type), parent, al.DisplayName("en"))
				}
				return tw.Flush()
			})
		},
	}
}

func newAllocationsMoveCommand(a *app) *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move an allocation under another one, or to the root without --parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			allocationID, err := parseID("allocation", args[0])
			if err != nil {
				return err
			}
			p, err := parseParent(parent)
			if err != nil {
				return err
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				if err := a.tree(s).SetParent(cmd.Context(), allocationID, p); err != nil {
					return err
				}
				a.record(s.name(), "allocation.move", fmt.Sprintf("%d under %q", allocationID, parent), 0)
				fmt.Fprintf(cmd.OutOrStdout(), "Moved allocation %d\n", allocationID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "new parent allocation id")
	return cmd
}

func newAllocationsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an unused allocation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			allocationID, err := parseID("allocation", args[0])
			if err != nil {
				return err
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				if err := a.tree(s).Delete(cmd.Context(), allocationID); err != nil {
					return err
				}
				a.record(s.name(), "allocation.delete", strconv.FormatInt(allocationID, 10), 0)
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted allocation %d\n", allocationID)
				return nil
			})
		},
	}
}
