package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/steward"
	"github.com/aretw0/steward/internal/presentation/report"
	"github.com/aretw0/steward/internal/presentation/tui"
	httpAdapter "github.com/aretw0/steward/pkg/adapters/http"
	"github.com/aretw0/steward/pkg/adapters/mcp"
	"github.com/aretw0/steward/pkg/config"
	"github.com/aretw0/steward/pkg/domain"
	"github.com/aretw0/steward/pkg/observability"
)

const shutdownTimeout = 5 * time.Second

// Converge loads path and drives the host to it.
func Converge(ctx context.Context, opts Options, path string) error {
	printer, err := newPrinter(opts)
	if err != nil {
		return err
	}
	doc, err := loadDocument(ctx, path)
	if err != nil {
		return err
	}
	s, err := newSession(opts, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	rep, runErr := s.engine.Converge(ctx, doc.Resources)
	logInterrupt(ctx, opts, "converge")
	if rep == nil {
		return runErr
	}
	if err := printer.Convergence(rep); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// Audit loads path and evaluates its control groups. A failed control yields
// ErrAuditFailed after the report is printed.
func Audit(ctx context.Context, opts Options, path string) error {
	printer, err := newPrinter(opts)
	if err != nil {
		return err
	}
	doc, err := loadDocument(ctx, path)
	if err != nil {
		return err
	}
	s, err := newSession(opts, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	run, runErr := s.engine.Audit(ctx, doc.ControlGroups)
	logInterrupt(ctx, opts, "audit")
	if run == nil {
		return runErr
	}
	if err := printer.Audit(run); err != nil {
		return errors.Join(runErr, err)
	}
	if runErr != nil {
		return runErr
	}
	if !run.Passed() {
		return ErrAuditFailed
	}
	return nil
}

// Validate parses path without touching the host.
func Validate(ctx context.Context, opts Options, path string) error {
	doc, err := loadDocument(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(opts.stdout(), "%s is valid: %d resources, %d control groups, %d assertions\n",
		path, len(doc.Resources), len(doc.ControlGroups), doc.AssertionCount())
	return nil
}

// ListReports prints every stored run, oldest first.
func ListReports(ctx context.Context, opts Options) error {
	if err := requirePersistentStore(opts); err != nil {
		return err
	}
	printer, err := newPrinter(opts)
	if err != nil {
		return err
	}
	s, err := newSession(opts, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	ids, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	records := make([]*domain.RunRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.store.Load(ctx, id)
		if errors.Is(err, domain.ErrReportNotFound) {
			continue // expired between List and Load
		}
		if err != nil {
			return fmt.Errorf("failed to load report %s: %w", id, err)
		}
		records = append(records, rec)
	}
	return printer.Records(records)
}

// ShowReport prints one stored run.
func ShowReport(ctx context.Context, opts Options, id string) error {
	if err := requirePersistentStore(opts); err != nil {
		return err
	}
	printer, err := newPrinter(opts)
	if err != nil {
		return err
	}
	s, err := newSession(opts, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	rec, err := s.store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load report %s: %w", id, err)
	}
	return printer.Record(rec)
}

// Serve runs the HTTP API until ctx is done.
func Serve(ctx context.Context, opts Options, addr string) error {
	metrics := observability.NewMetrics()
	s, err := newSession(opts, metrics)
	if err != nil {
		return err
	}
	defer s.Close()

	handler := httpAdapter.NewHandler(s.engine, s.store,
		httpAdapter.WithMetrics(metrics),
		httpAdapter.WithLogger(s.logger),
		httpAdapter.WithVersion(strings.TrimSpace(steward.Version)),
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if tui.IsTerminal(opts.stderr()) {
		tui.PrintBanner(opts.stderr())
	}
	printSystemMessage(opts, "Serving on %s (store: %s)", addr, storeName(opts))

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return usageError(fmt.Errorf("server error: %w", err))
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("graceful shutdown did not complete", "err", err)
			_ = srv.Close()
		}
		printSystemMessage(opts, "Server stopped")
		return nil
	}
}

// ServeMCP runs the MCP server on stdin/stdout.
func ServeMCP(opts Options) error {
	s, err := newSession(opts, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	s.logger.Info("starting MCP server (stdio)")
	return mcp.NewServer(s.engine, s.store).ServeStdio()
}

func newPrinter(opts Options) (*report.Printer, error) {
	format, err := report.ParseFormat(opts.Format)
	if err != nil {
		return nil, usageError(err)
	}
	return report.NewPrinter(opts.stdout(), format), nil
}

// loadDocument reads a config file or cookbook directory.
func loadDocument(ctx context.Context, path string) (*config.Document, error) {
	doc, err := steward.LoadDocument(ctx, path)
	if err != nil {
		return nil, usageError(err)
	}
	return doc, nil
}

// requirePersistentStore rejects the memory store, which is empty in every
// new process.
func requirePersistentStore(opts Options) error {
	if storeName(opts) == StoreMemory {
		return usageError(errors.New("reports are only kept by a persistent store: use --store file or --store redis"))
	}
	return nil
}

func storeName(opts Options) string {
	if opts.Store == "" {
		return StoreMemory
	}
	return opts.Store
}
