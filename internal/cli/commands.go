package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ronappleton/advisorflow/internal/config"
	grpcserver "github.com/ronappleton/advisorflow/internal/grpc"
	"github.com/ronappleton/advisorflow/internal/httpserver"
	"github.com/ronappleton/advisorflow/internal/logging"
	"github.com/ronappleton/advisorflow/internal/otel"
	"github.com/ronappleton/advisorflow/internal/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(configPath(cmd))
		},
	}
}

func runServer(path string) error {
	app := fx.New(
		config.Module(path),
		logging.Module(),
		otel.Module(),
		workflow.Module(),
		grpcserver.Module,
		httpserver.Module(),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

// withService builds the engine without the servers, runs fn and stops the
// graph so stores are closed.
func withService(ctx context.Context, path string, fn func(*workflow.Service) error) error {
	var svc *workflow.Service
	app := fx.New(
		config.Module(path),
		logging.Module(),
		workflow.Module(),
		fx.NopLogger,
		fx.Populate(&svc),
	)
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()
	return fn(svc)
}

func newTemplatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the workflow template catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), configPath(cmd), func(svc *workflow.Service) error {
				return printTemplates(cmd.OutOrStdout(), svc.ListTemplates())
			})
		},
	}
}

func printTemplates(out io.Writer, items []workflow.TemplateSummary) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTRIGGER\tSTEPS\tENABLED")
	for _, t := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n", t.ID, t.Name, t.Trigger, t.StepCount, t.Enabled)
	}
	return tw.Flush()
}

func newFireCommand() *cobra.Command {
	var (
		entityName string
		subject    string
		createdAt  string
	)
	cmd := &cobra.Command{
		Use:   "fire <event> <entity-id>",
		Short: "Fire a business event for an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			event := workflow.TriggerEvent(args[0])
			opts := workflow.FireOptions{SubjectContains: subject}
			if createdAt != "" {
				t, err := time.Parse(time.DateOnly, createdAt)
				if err != nil {
					return fmt.Errorf("created-at: %w", err)
				}
				opts.EntityCreatedAt = t
			}
			return withService(cmd.Context(), configPath(cmd), func(svc *workflow.Service) error {
				res := svc.Fire(cmd.Context(), event, args[1], entityName, opts)
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&entityName, "entity-name", "", "Display name of the entity")
	cmd.Flags().StringVar(&subject, "subject", "", "Subject of the completed task, selects between templates sharing an event")
	cmd.Flags().StringVar(&createdAt, "created-at", "", "Entity creation date (YYYY-MM-DD) for day-based conditions")
	return cmd
}

func newInstancesCommand() *cobra.Command {
	var (
		createdAt string
		active    bool
	)
	cmd := &cobra.Command{
		Use:   "instances [entity-id]",
		Short: "Show workflow progress reconstructed from the record store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !active && len(args) == 0 {
				return fmt.Errorf("entity id required unless --active is set")
			}
			var created time.Time
			if createdAt != "" {
				t, err := time.Parse(time.DateOnly, createdAt)
				if err != nil {
					return fmt.Errorf("created-at: %w", err)
				}
				created = t
			}
			return withService(cmd.Context(), configPath(cmd), func(svc *workflow.Service) error {
				var (
					items []workflow.Instance
					err   error
				)
				if active {
					items, err = svc.ActiveInstances(cmd.Context())
				} else {
					items, err = svc.Instances(cmd.Context(), args[0], "", created)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			})
		},
	}
	cmd.Flags().StringVar(&createdAt, "created-at", "", "Entity creation date (YYYY-MM-DD); evaluates scheduled templates first")
	cmd.Flags().BoolVar(&active, "active", false, "List active instances across recent records")
	return cmd
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
