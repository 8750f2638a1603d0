package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tazhate/tasksync/config"
	"github.com/tazhate/tasksync/internal/domain"
)

var providersCmd = &cobra.Command{
	Use:     "providers",
	Aliases: []string{"provider"},
	Short:   "Manage CalDAV providers",
}

var providerFlags struct {
	url, resource, component, auth  string
	username, password, bearer      string
	category                        string
	writeBack, transition, disabled bool
}

var providersAddCmd = &cobra.Command{
	Use:   "add ID",
	Short: "Add or replace a provider",
	Example: `  tasksync providers add work --url https://cal.example.com/dav/ \
    --resource Tasks --username alice --password "$CALDAV_PASSWORD" --transition`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := providerFlags
		p := &domain.ProviderConfig{
			ID:                args[0],
			Enabled:           !f.disabled,
			URL:               f.url,
			ResourceName:      f.resource,
			ComponentType:     domain.ComponentType(f.component),
			AuthType:          domain.AuthType(f.auth),
			Username:          f.username,
			Password:          f.password,
			BearerToken:       f.bearer,
			CategoryFilter:    f.category,
			WriteBack:         f.writeBack,
			TransitionEnabled: f.transition,
		}
		if err := config.Normalize(p); err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %s: %w", p.ID, err)
		}
		if err := a.store.SaveProvider(p); err != nil {
			return fmt.Errorf("save provider: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved provider %s\n", p.ID)
		return nil
	},
}

var providersImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Add or replace providers from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		providers, err := config.LoadProviders(args[0])
		if err != nil {
			return err
		}
		for _, p := range providers {
			if err := a.store.SaveProvider(p); err != nil {
				return fmt.Errorf("save provider %s: %w", p.ID, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d providers\n", len(providers))
		return nil
	},
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		providers, err := a.store.ListProviders(false)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tENABLED\tKIND\tRESOURCE\tURL\tWRITE")
		for _, p := range providers {
			write := "-"
			switch {
			case p.IsEvent() && p.WriteBack:
				write = "write-back"
			case !p.IsEvent() && p.TransitionEnabled:
				write = "transition"
			}
			fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\t%s\n", p.ID, p.Enabled, p.ComponentType, p.ResourceName, p.URL, write)
		}
		return w.Flush()
	},
}

var providersTestCmd = &cobra.Command{
	Use:   "test ID",
	Short: "Check that the provider's calendar is reachable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := lookupProvider(args[0])
		if err != nil {
			return err
		}
		if _, err := a.issues.TestConnection(context.Background(), p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Provider %s OK\n", p.ID)
		return nil
	},
}

func setEnabledCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: use + " a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := lookupProvider(args[0]); err != nil {
				return err
			}
			return a.store.SetProviderEnabled(args[0], enabled)
		},
	}
}

var providersRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Remove a provider; its tasks stay but are unlinked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := lookupProvider(args[0]); err != nil {
			return err
		}
		return a.store.DeleteProvider(args[0])
	},
}

func lookupProvider(id string) (*domain.ProviderConfig, error) {
	p, err := a.store.GetProvider(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("provider %s not found", id)
	}
	return p, nil
}

func init() {
	f := providersAddCmd.Flags()
	f.StringVar(&providerFlags.url, "url", "", "CalDAV server URL")
	f.StringVar(&providerFlags.resource, "resource", "", "calendar display name or URL slug")
	f.StringVar(&providerFlags.component, "component", "TODO", "TODO or EVENT")
	f.StringVar(&providerFlags.auth, "auth", "basic", "basic or bearer")
	f.StringVar(&providerFlags.username, "username", "", "basic auth user")
	f.StringVar(&providerFlags.password, "password", "", "basic auth password")
	f.StringVar(&providerFlags.bearer, "bearer-token", "", "bearer token")
	f.StringVar(&providerFlags.category, "category", "", "only sync items with this category")
	f.BoolVar(&providerFlags.writeBack, "write-back", false, "push task edits to events")
	f.BoolVar(&providerFlags.transition, "transition", false, "push done/undone and titles to todos")
	f.BoolVar(&providerFlags.disabled, "disabled", false, "store the provider switched off")
	providersAddCmd.MarkFlagRequired("url")
	providersAddCmd.MarkFlagRequired("resource")

	providersCmd.AddCommand(
		providersAddCmd,
		providersImportCmd,
		providersListCmd,
		providersTestCmd,
		setEnabledCmd("enable", true),
		setEnabledCmd("disable", false),
		providersRemoveCmd,
	)
}
