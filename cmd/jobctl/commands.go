package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/justsurfingit/job-o-matic/internal/app"
	"github.com/justsurfingit/job-o-matic/internal/apply"
	"github.com/justsurfingit/job-o-matic/internal/models"
	"github.com/justsurfingit/job-o-matic/internal/platform"
)

func RootCmd(a *app.App) *cobra.Command {
	root := &cobra.Command{
		Use:          "jobctl",
		Short:        "Preview, approve and submit job applications",
		SilenceUsage: true,
	}
	root.AddCommand(ListCmd(a))
	root.AddCommand(PreviewCmd(a))
	root.AddCommand(ApproveCmd(a))
	root.AddCommand(SubmitCmd(a))
	root.AddCommand(MarkCmd(a))
	return root
}

func ListCmd(a *app.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("status")
			var status models.Status
			if raw != "" {
				st, err := models.ParseStatus(raw)
				if err != nil {
					return err
				}
				status = st
			}
			jobs, err := a.Jobs.List(cmd.Context(), status)
			if err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tPLATFORM\tCOMPANY\tTITLE")
			for _, j := range jobs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", j.ID, j.Status, platform.Detect(j.ApplyURL), j.CompanyName(), j.Title)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("status", "", "Filter by status (NOT_APPLIED, PREVIEW_READY, APPROVED, SENT, PENDING, REJECTED, INTERVIEW)")
	return cmd
}

func PreviewCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <id>...",
		Short: "Generate application bundles for review",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			results, err := a.Bulk.Preview(cmd.Context(), ids)
			for _, r := range results {
				if r.Error != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "❌ #%d [%s]: %s\n", r.JobID, r.Status, r.Error)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ #%d [%s]: %s\n", r.JobID, r.Status, r.OutputDir)
			}
			return err
		},
	}
}

func ApproveCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>...",
		Short: "Approve reviewed previews for submission",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			n, err := a.Bulk.Approve(cmd.Context(), ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Approved %d of %d jobs.\n", n, len(ids))
			return nil
		},
	}
}

func SubmitCmd(a *app.App) *cobra.Command {
	var cand apply.Candidate
	var creds apply.Credentials
	cmd := &cobra.Command{
		Use:   "submit <id>...",
		Short: "Submit approved applications through Greenhouse or Lever",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			report, err := a.Bulk.Submit(cmd.Context(), ids, cand, creds)
			if report != nil {
				out := cmd.OutOrStdout()
				for _, line := range report.Lines() {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintf(out, "\n%d sent, %d manual, %d failed, %d skipped\n",
					report.Succeeded, report.ManualRequired, report.Failed, report.Skipped)
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&cand.FirstName, "first-name", "", "Candidate first name")
	f.StringVar(&cand.LastName, "last-name", "", "Candidate last name")
	f.StringVar(&cand.Email, "email", "", "Candidate email")
	f.StringVar(&cand.Phone, "phone", "", "Candidate phone")
	// keys default to the environment so they stay out of shell history
	f.StringVar(&creds.Greenhouse, "greenhouse-key", os.Getenv("GREENHOUSE_API_KEY"), "Greenhouse API key")
	f.StringVar(&creds.Lever, "lever-key", os.Getenv("LEVER_API_KEY"), "Lever API key")
	return cmd
}

func MarkCmd(a *app.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mark <id> <PENDING|REJECTED|INTERVIEW>",
		Short: "Record a manual status for a job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:1])
			if err != nil {
				return err
			}
			to, err := models.ParseStatus(args[1])
			if err != nil {
				return err
			}
			note, _ := cmd.Flags().GetString("note")
			job, err := a.Jobs.MarkStatus(cmd.Context(), ids[0], to, note)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "#%d %s - %s is now %s\n", job.ID, job.CompanyName(), job.Title, job.Status)
			return nil
		},
	}
	cmd.Flags().String("note", "", "Free-text note stored with the event")
	return cmd
}

func parseIDs(args []string) ([]uint, error) {
	ids := make([]uint, 0, len(args))
	for _, a := range args {
		n, err := strconv.ParseUint(a, 10, 64)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("invalid job id %q", a)
		}
		ids = append(ids, uint(n))
	}
	return ids, nil
}
