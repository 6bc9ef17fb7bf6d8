package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/BerylCAtieno/market-research-agent/internal/export"
	"github.com/BerylCAtieno/market-research-agent/internal/models"
)

func newProjectsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List, show and delete saved projects",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved projects, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := a.openStore()
				if err != nil {
					return err
				}
				defer st.Close()

				projects, err := st.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(projects) == 0 {
					fmt.Fprintln(a.out, "No saved projects.")
					return nil
				}
				tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCREATED")
				for _, p := range projects {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.CreatedAt.Local().Format("2006-01-02 15:04:05"))
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print a saved project as JSON",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := loadProject(cmd, a, args[0])
				if err != nil {
					return err
				}
				return export.WriteJSON(a.out, export.FromProject(p))
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a saved project",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := a.openStore()
				if err != nil {
					return err
				}
				defer st.Close()

				ok, err := st.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("project %s not found", args[0])
				}
				fmt.Fprintf(a.out, "Deleted project %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var out, transcriptOut string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a saved project as JSON and/or transcript text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd, a, args[0])
			if err != nil {
				return err
			}
			doc := export.FromProject(p)
			if out == "" && transcriptOut == "" {
				return export.WriteJSON(a.out, doc)
			}
			if out != "" {
				b, err := export.JSON(doc)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, b, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(a.out, "Wrote %s\n", out)
			}
			if transcriptOut != "" {
				if err := os.WriteFile(transcriptOut, []byte(export.Transcript(doc)), 0o644); err != nil {
					return fmt.Errorf("write transcript: %w", err)
				}
				fmt.Fprintf(a.out, "Wrote %s\n", transcriptOut)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write JSON to this file instead of stdout (e.g. "+export.JSONFilename+")")
	cmd.Flags().StringVar(&transcriptOut, "transcript-out", "", "write the transcript to this file")
	return cmd
}

func loadProject(cmd *cobra.Command, a *app, id string) (*models.Project, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	p, err := st.Get(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("project %s not found", id)
	}
	return p, nil
}
