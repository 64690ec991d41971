package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	githubadapter "github.com/ericfisherdev/formrelay/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/formrelay/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/formrelay/internal/application"
	"github.com/ericfisherdev/formrelay/internal/config"
	"github.com/ericfisherdev/formrelay/internal/domain/model"
)

func dispatchCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "dispatch",
		Aliases: []string{"d"},
		Usage:   "Relay a start/end pair as if a form had been submitted",
		Description: `Builds a submission from --start and --end using the configured
field titles and relays it once. The attempt is recorded in the ledger
with source "cli". Reusing --id of an already dispatched submission
records a duplicate instead of calling GitHub again.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "start",
				Aliases:  []string{"s"},
				Usage:    "Start marker value",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "end",
				Aliases:  []string{"e"},
				Usage:    "End marker value",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "id",
				Usage: "Submission ID (default: cli-<uuid>)",
			},
		},
		Action: func(c *cli.Context) error {
			return withRelay(c.Context, logger, func(cfg *config.Config, svc *application.RelayService) error {
				id := c.String("id")
				if id == "" {
					id = "cli-" + uuid.NewString()
				}
				resp := model.FormResponse{
					ID:          id,
					SubmittedAt: time.Now().UTC(),
					Items: []model.FormItem{
						{Title: cfg.StartTitle, Response: c.String("start")},
						{Title: cfg.EndTitle, Response: c.String("end")},
					},
				}

				d, err := svc.HandleSubmission(c.Context, resp, model.DispatchSourceCLI)
				if err != nil {
					return err
				}

				fmt.Fprintf(c.App.Writer, "dispatch #%d %s submission=%s start=%s end=%s http=%d\n",
					d.ID, d.Status, d.SubmissionID, d.Start, d.End, d.StatusCode)
				if d.Status == model.DispatchStatusFailed {
					return fmt.Errorf("dispatch #%d failed: %s", d.ID, d.Error)
				}
				return nil
			})
		},
	}
}

func historyCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "history",
		Aliases: []string{"h", "ls"},
		Usage:   "List recent relay attempts, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of records",
				Value:   20,
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			return withRelay(c.Context, logger, func(_ *config.Config, svc *application.RelayService) error {
				dispatches, err := svc.Recent(c.Context, c.Int("limit"))
				if err != nil {
					return err
				}

				if c.Bool("json") {
					enc := json.NewEncoder(c.App.Writer)
					enc.SetIndent("", "  ")
					return enc.Encode(toHistoryRows(dispatches))
				}

				if len(dispatches) == 0 {
					fmt.Fprintln(c.App.Writer, "no dispatches recorded")
					return nil
				}

				tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tRECEIVED\tSUBMISSION\tSTART\tEND\tSTATUS\tHTTP\tSOURCE")
				for _, d := range dispatches {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
						d.ID, d.CreatedAt.UTC().Format(time.DateTime), d.SubmissionID,
						d.Start, d.End, d.Status, d.StatusCode, d.Source)
				}
				return tw.Flush()
			})
		},
	}
}

func verifyCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Check that the configured workflow exists and is active",
		Action: func(c *cli.Context) error {
			return withRelay(c.Context, logger, func(cfg *config.Config, svc *application.RelayService) error {
				wf, err := svc.VerifyTarget(c.Context)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%s on %s: %q (%s) state=%s\n",
					wf.Path, cfg.Target().FullName(), wf.Name, cfg.Target().Ref, wf.State)
				return nil
			})
		},
	}
}

// historyRow is the JSON shape printed by "history --json".
type historyRow struct {
	ID           int64  `json:"id"`
	SubmissionID string `json:"submission_id"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Status       string `json:"status"`
	StatusCode   int    `json:"status_code"`
	Error        string `json:"error,omitempty"`
	Source       string `json:"source"`
	SubmittedAt  string `json:"submitted_at,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func toHistoryRows(dispatches []model.Dispatch) []historyRow {
	rows := make([]historyRow, 0, len(dispatches))
	for _, d := range dispatches {
		var submittedAt string
		if !d.SubmittedAt.IsZero() {
			submittedAt = d.SubmittedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, historyRow{
			ID:           d.ID,
			SubmissionID: d.SubmissionID,
			Start:        d.Start,
			End:          d.End,
			Status:       string(d.Status),
			StatusCode:   d.StatusCode,
			Error:        d.Error,
			Source:       string(d.Source),
			SubmittedAt:  submittedAt,
			CreatedAt:    d.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows
}

// withRelay loads configuration, opens the ledger and builds the relay
// service for the duration of fn.
func withRelay(ctx context.Context, logger *slog.Logger, fn func(*config.Config, *application.RelayService) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}

	ghClient, err := githubadapter.NewClient(cfg.GitHubToken, cfg.GitHubAPIURL)
	if err != nil {
		return err
	}

	svc := application.NewRelayService(
		ghClient,
		sqliteadapter.NewDispatchRepo(db),
		cfg.Target(),
		application.MarkerRules{
			StartTitle: cfg.StartTitle,
			EndTitle:   cfg.EndTitle,
			StartInput: cfg.StartInput,
			EndInput:   cfg.EndInput,
		},
		cfg.DispatchTimeout,
		logger,
	)
	return fn(cfg, svc)
}
