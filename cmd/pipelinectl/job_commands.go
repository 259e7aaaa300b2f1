package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"editorial-pipeline/internal/infra/api/apiv1"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		req       apiv1.SubmitJobsRequest
		publishAt string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit one generation job per knowledge source",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Strategy = strings.ToUpper(req.Strategy)
			if publishAt != "" {
				t, err := time.Parse(time.RFC3339, publishAt)
				if err != nil {
					return fmt.Errorf("--publish-at must be RFC 3339: %w", err)
				}
				req.PublishAt = &t
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			out, err := client.SubmitJobs(cmd.Context(), req)
			if err != nil {
				return err
			}
			if ctx.jsonOut {
				return writeJSON(cmd, out)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderJobTable(out.Items))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.CategoryID, "category", "", "Category id")
	f.StringVar(&req.AuthorID, "author", "", "Author id")
	f.StringVar(&req.BrandID, "brand", "", "Brand id")
	f.StringSliceVar(&req.KnowledgeSourceIDs, "source", nil, "Knowledge source id (repeatable)")
	f.StringSliceVar(&req.ConversionOfferIDs, "offer", nil, "Conversion offer id (repeatable)")
	f.StringVar(&req.Strategy, "strategy", "DRAFT", "DRAFT, PUBLISH_NOW or SCHEDULED")
	f.StringVar(&publishAt, "publish-at", "", "Publish time for SCHEDULED (RFC 3339)")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("author")
	_ = cmd.MarkFlagRequired("brand")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job with its stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			job, err := client.GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOut {
				return writeJSON(cmd, job)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderJobDetail(job))
			return nil
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		status      string
		submittedBy string
		since       time.Duration
		limit       int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", strings.ToLower(status))
			}
			if submittedBy != "" {
				q.Set("submitted_by", submittedBy)
			}
			if since > 0 {
				q.Set("since", time.Now().Add(-since).UTC().Format(time.RFC3339))
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			out, err := client.ListJobs(cmd.Context(), q)
			if err != nil {
				return err
			}
			if ctx.jsonOut {
				return writeJSON(cmd, out)
			}
			if len(out.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderJobTable(out.Items))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&status, "status", "", "Filter by status (pending, running, completed, failed, cancelled)")
	f.StringVar(&submittedBy, "submitted-by", "", "Filter by submitting editor")
	f.DurationVar(&since, "since", 0, "Only jobs created within this duration (e.g. 24h)")
	f.IntVar(&limit, "limit", 50, "Maximum number of jobs")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return jobActionCommand(ctx, "retry <job-id>", "Resume a failed or cancelled job from its first unfinished stage",
		func(c *apiClient, cmd *cobra.Command, id string) (any, error) {
			return c.RetryJob(cmd.Context(), id)
		})
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return jobActionCommand(ctx, "cancel <job-id>", "Request cancellation; the running stage finishes first",
		func(c *apiClient, cmd *cobra.Command, id string) (any, error) {
			return c.CancelJob(cmd.Context(), id)
		})
}

func newSalvageCommand(ctx *commandContext) *cobra.Command {
	return jobActionCommand(ctx, "salvage <job-id>", "Store a DRAFT article from a failed or cancelled job",
		func(c *apiClient, cmd *cobra.Command, id string) (any, error) {
			return c.SalvageJob(cmd.Context(), id)
		})
}

func jobActionCommand(ctx *commandContext, use, short string, action func(*apiClient, *cobra.Command, string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			out, err := action(client, cmd, args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOut {
				return writeJSON(cmd, out)
			}
			switch v := out.(type) {
			case apiv1.Job:
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s is %s\n", v.ID, strings.ToUpper(v.Status))
			case apiv1.Article:
				fmt.Fprintf(cmd.OutOrStdout(), "Article %s stored as %s (version %d)\n", v.ID, v.Status, v.Version)
			}
			return nil
		},
	}
}

func renderJobTable(jobs []apiv1.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			j.ID,
			strings.ToUpper(j.Status),
			j.Strategy,
			j.KnowledgeSourceID,
			j.SubmittedBy,
			j.CreatedAt.Local().Format("2006-01-02 15:04"),
			truncate(j.LastError, 48),
		})
	}
	return renderTable(
		[]string{"ID", "Status", "Strategy", "Source", "Submitted By", "Created", "Last Error"},
		rows,
		nil,
	)
}

func renderJobDetail(j apiv1.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job:       %s\n", j.ID)
	fmt.Fprintf(&b, "Status:    %s\n", strings.ToUpper(j.Status))
	fmt.Fprintf(&b, "Strategy:  %s\n", j.Strategy)
	fmt.Fprintf(&b, "Style:     %s\n", j.ImageStyle)
	if j.ArticleID != nil {
		fmt.Fprintf(&b, "Article:   %s\n", *j.ArticleID)
	}
	if j.LastError != "" {
		fmt.Fprintf(&b, "Error:     %s\n", j.LastError)
	}
	fmt.Fprintf(&b, "Usage:     %d in / %d out tokens, %d images\n\n", j.Usage.TokensIn, j.Usage.TokensOut, j.Usage.Images)

	rows := make([][]string, 0, len(j.Stages))
	for _, s := range j.Stages {
		rows = append(rows, []string{
			strconv.Itoa(s.Ordinal),
			s.Name,
			strings.ToUpper(s.Status),
			strconv.Itoa(s.Attempts),
			strconv.Itoa(s.Usage.TokensIn + s.Usage.TokensOut),
			truncate(s.Error, 48),
		})
	}
	b.WriteString(renderTable(
		[]string{"#", "Stage", "Status", "Attempts", "Tokens", "Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
