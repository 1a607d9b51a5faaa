package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	appinvoicing "github.com/dandroos/node-invoicer/internal/application/invoicing"
	domain "github.com/dandroos/node-invoicer/internal/domain/invoicing"
	"github.com/dandroos/node-invoicer/internal/infrastructure/telemetry"
	clui "github.com/dandroos/node-invoicer/internal/interfaces/cli"
)

// Exit codes
const (
	exitFailed     = 1
	exitStepFailed = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Error())
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitFailed)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "invoicer",
		Usage:   "issue sequentially numbered PDF invoices",
		Version: telemetry.ServiceVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config.toml",
				EnvVars: []string{"INVOICER_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			issueCommand(),
			nextNumberCommand(),
			migrateCommand(),
		},
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func issueCommand() *cli.Command {
	return &cli.Command{
		Name:  "issue",
		Usage: "issue an invoice; prompts for the details unless --recipient is given",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "recipient", Usage: "recipient name"},
			&cli.StringFlag{Name: "tax-id", Usage: "recipient tax id"},
			&cli.StringFlag{Name: "address", Usage: "recipient address, comma separated"},
			&cli.StringFlag{Name: "email", Usage: "recipient e-mail"},
			&cli.StringSliceFlag{Name: "item", Usage: `line item as "description=amount", repeatable`},
			&cli.StringFlag{Name: "date", Usage: "issue date as DD/MM/YYYY, today by default"},
			&cli.BoolFlag{Name: "email-recipient", Usage: "e-mail the invoice to the recipient"},
			&cli.BoolFlag{Name: "email-accountant", Usage: "e-mail the invoice to the accountant"},
			&cli.BoolFlag{Name: "purge", Usage: "delete the local PDF after distribution (default from output.purge)"},
		},
		Action: runIssue,
	}
}

func runIssue(c *cli.Context) error {
	app, err := bootstrap(c.Context, c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitFailed)
	}
	defer app.close()

	purge := app.cfg.Output.Purge
	if c.IsSet("purge") {
		purge = c.Bool("purge")
	}

	var input appinvoicing.IssueInvoiceInput
	var opts appinvoicing.IssueOptions
	if c.IsSet("recipient") {
		input, err = inputFromFlags(c)
		if err != nil {
			return cli.Exit(err.Error(), exitFailed)
		}
		opts = appinvoicing.IssueOptions{
			EmailRecipient:  c.Bool("email-recipient"),
			EmailAccountant: c.Bool("email-accountant"),
			Purge:           purge,
		}
	} else {
		prompter, err := clui.NewPrompter(os.Stdin, os.Stdout, app.cfg.Defaults)
		if err != nil {
			return cli.Exit(err.Error(), exitFailed)
		}
		defer prompter.Close()
		if input, err = prompter.CollectInvoice(); err != nil {
			return cli.Exit(err.Error(), exitFailed)
		}
		if opts, err = prompter.CollectOptions(purge); err != nil {
			return cli.Exit(err.Error(), exitFailed)
		}
	}

	req, err := input.ToRequest()
	if err != nil {
		return cli.Exit(err.Error(), exitFailed)
	}

	pipeline, err := app.pipeline(c.Context)
	if err != nil {
		app.logger.Error("Failed to set up the pipeline", zap.Error(err))
		return cli.Exit(err.Error(), exitFailed)
	}

	fmt.Fprintln(os.Stdout, "\nCREATING INVOICE...")
	report, issueErr := pipeline.Issue(c.Context, req, opts)
	_ = clui.PrintReport(os.Stdout, report)

	if issueErr != nil {
		return cli.Exit(issueErr.Error(), exitFailed)
	}
	if stepErr := report.StepErrors(); stepErr != nil {
		return cli.Exit("some distribution steps failed", exitStepFailed)
	}
	return nil
}

func inputFromFlags(c *cli.Context) (appinvoicing.IssueInvoiceInput, error) {
	date := time.Now()
	if s := c.String("date"); s != "" {
		d, err := domain.ParseRecordDate(s)
		if err != nil {
			return appinvoicing.IssueInvoiceInput{}, fmt.Errorf("invalid --date %q, want DD/MM/YYYY", s)
		}
		date = d
	}

	items, err := parseItems(c.StringSlice("item"))
	if err != nil {
		return appinvoicing.IssueInvoiceInput{}, err
	}

	return appinvoicing.IssueInvoiceInput{
		Date:             date,
		RecipientName:    c.String("recipient"),
		RecipientAddress: c.String("address"),
		RecipientTaxID:   c.String("tax-id"),
		RecipientEmail:   c.String("email"),
		Items:            items,
	}, nil
}

// parseItems reads "description=amount" pairs; the amount follows the last '='
func parseItems(raw []string) ([]appinvoicing.LineItemInput, error) {
	items := make([]appinvoicing.LineItemInput, 0, len(raw))
	for _, r := range raw {
		i := strings.LastIndex(r, "=")
		if i <= 0 {
			return nil, fmt.Errorf("invalid --item %q, want description=amount", r)
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(r[i+1:]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amount in --item %q: %w", r, err)
		}
		items = append(items, appinvoicing.LineItemInput{
			Description: strings.TrimSpace(r[:i]),
			Amount:      amount,
		})
	}
	return items, nil
}

func nextNumberCommand() *cli.Command {
	return &cli.Command{
		Name:  "next-number",
		Usage: "print the number the next invoice would get",
		Action: func(c *cli.Context) error {
			app, err := bootstrap(c.Context, c.String("config"))
			if err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}
			defer app.close()

			pipeline, err := app.pipeline(c.Context)
			if err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}
			number, err := pipeline.PeekNextNumber(c.Context)
			if err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}
			fmt.Fprintln(os.Stdout, number)
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	run := func(fn func(app *application, c *cli.Context) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			app, err := bootstrap(c.Context, c.String("config"))
			if err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}
			defer app.close()
			if err := fn(app, c); err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}
			return nil
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "manage the Postgres ledger schema",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: run(func(app *application, _ *cli.Context) error {
					return app.migrateUp()
				}),
			},
			{
				Name:  "down",
				Usage: "roll back every migration",
				Action: run(func(app *application, _ *cli.Context) error {
					m, err := app.migrator()
					if err != nil {
						return err
					}
					defer func() { _ = m.Close() }()
					return m.Down()
				}),
			},
			{
				Name:  "version",
				Usage: "print the current schema version",
				Action: run(func(app *application, _ *cli.Context) error {
					m, err := app.migrator()
					if err != nil {
						return err
					}
					defer func() { _ = m.Close() }()
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(os.Stdout, "version %d (dirty: %t)\n", version, dirty)
					return nil
				}),
			},
			{
				Name:      "force",
				Usage:     "set the schema version without running migrations",
				ArgsUsage: "VERSION",
				Action: run(func(app *application, c *cli.Context) error {
					version, err := strconv.Atoi(c.Args().First())
					if err != nil {
						return fmt.Errorf("force needs a numeric version: %w", err)
					}
					m, err := app.migrator()
					if err != nil {
						return err
					}
					defer func() { _ = m.Close() }()
					return m.Force(version)
				}),
			},
		},
	}
}
