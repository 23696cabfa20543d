package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"messagecore/internal/core"
	"messagecore/pkg/domain"
)

// NewDemoCommand creates the demo command and its scenarios.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run scripted scenarios against the service",
	}
	cmd.AddCommand(demoScenario(rootOpts, "basic", "Create two messages, patch the first and list them", demoBasic))
	cmd.AddCommand(demoScenario(rootOpts, "subscribers", "Print events from created, patched and removed listeners", demoSubscribers))
	cmd.AddCommand(demoScenario(rootOpts, "paginate", "Create 101 messages and walk filtered, sorted pages", demoPaginate, withDatabaseVariant(), withPagination()))
	return cmd
}

type scenario func(ctx context.Context, svc *core.Service, out io.Writer) error

func demoScenario(rootOpts *RootOptions, name, short string, run scenario, opts ...appOption) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all := append([]appOption{withSnapshot(rootOpts.Snapshot)}, opts...)
			app, err := newApp(cmd.Context(), rootOpts.Config(), cmd.ErrOrStderr(), all...)
			if err != nil {
				return err
			}
			runErr := run(cmd.Context(), app.Service, cmd.OutOrStdout())
			if err := app.Close(); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}
}

func demoBasic(ctx context.Context, svc *core.Service, out io.Writer) error {
	first, err := svc.Create(ctx, domain.Record{domain.FieldText: "First message"})
	if err != nil {
		return err
	}
	if _, err := svc.Create(ctx, domain.Record{domain.FieldText: "Second message"}); err != nil {
		return err
	}
	id, _ := first.ID()
	if _, err := svc.Patch(ctx, id, domain.Record{
		"revision_text": "This is my updated first message",
		"revision":      "first revision",
	}); err != nil {
		return err
	}
	list, err := svc.Find(ctx, domain.Query{})
	if err != nil {
		return err
	}
	return printJSON(out, "Available messages", list)
}

func demoSubscribers(ctx context.Context, svc *core.Service, out io.Writer) error {
	printer := func(label string) core.Listener {
		return func(_ context.Context, _ domain.Event, rec domain.Record) error {
			return printJSON(out, label, rec)
		}
	}
	svc.On(domain.EventCreated, printer("Created a new message"))
	svc.On(domain.EventCreated, printer("Queued notification email for"))
	svc.On(domain.EventRemoved, printer("Deleted message"))
	svc.On(domain.EventPatched, printer("Patched message"))

	first, err := svc.Create(ctx, domain.Record{domain.FieldText: "First message"})
	if err != nil {
		return err
	}
	id, _ := first.ID()
	if _, err := svc.Patch(ctx, id, domain.Record{domain.FieldText: "This is my new message"}); err != nil {
		return err
	}
	last, err := svc.Create(ctx, domain.Record{domain.FieldText: "Second message"})
	if err != nil {
		return err
	}
	lastID, _ := last.ID()
	if _, err := svc.Remove(ctx, lastID); err != nil {
		return err
	}
	list, err := svc.Find(ctx, domain.Query{})
	if err != nil {
		return err
	}
	return printJSON(out, "Available messages", list)
}

func demoPaginate(ctx context.Context, svc *core.Service, out io.Writer) error {
	if _, err := svc.Create(ctx, domain.Record{domain.FieldText: "Message created on server", domain.FieldCounter: 1}); err != nil {
		return err
	}
	for counter := 2; counter < 102; counter++ {
		if _, err := svc.Create(ctx, domain.Record{
			domain.FieldText:    fmt.Sprintf("Message number %d", counter),
			domain.FieldCounter: counter,
		}); err != nil {
			return err
		}
	}
	pages := []struct {
		label string
		query domain.Query
	}{
		{"Page number 2", domain.Query{}.WithSkip(10)},
		{"20 items", domain.Query{}.WithLimit(20)},
		{"Counter greater 50 and less than 70", domain.Query{}.
			Where(domain.FieldCounter, domain.OpGt, 50).
			Where(domain.FieldCounter, domain.OpLt, 70).
			SortBy(domain.FieldCounter, false).
			SortBy(domain.FieldID, true)},
		{`Entries with text "Message number 20"`, domain.Query{}.Where(domain.FieldText, domain.OpEq, "Message number 20")},
	}
	for _, p := range pages {
		list, err := svc.Find(ctx, p.query)
		if err != nil {
			return err
		}
		if err := printJSON(out, p.label, list); err != nil {
			return err
		}
	}
	return nil
}

func printJSON(out io.Writer, label string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s %s\n", label, data)
	return err
}
