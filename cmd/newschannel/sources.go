package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func sourcesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage crawl sources",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if err := a.SeedRegistry(cmd.Context()); err != nil {
				return err
			}
			sources, err := a.Sources.ListSources(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range sources {
				state := "active"
				if !s.IsActive {
					state = "disabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", s.ID, state, s.Link)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <url>",
		Short: "Add a source or re-enable a disabled one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if _, err := a.Registry.Resolve(args[0]); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v; the generic extractor will be used\n", err)
			}
			s, err := a.Sources.AddSource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "disable <id|url>",
		Short: "Disable a source by id or link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if id, perr := strconv.ParseInt(args[0], 10, 64); perr == nil {
				err = a.Sources.DisableSource(cmd.Context(), id)
			} else {
				err = a.Sources.DisableSourceByLink(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "disabled %s\n", args[0])
			return nil
		},
	})

	return cmd
}
