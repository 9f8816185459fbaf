// Command jobsdashboard runs the job-board REST backend and drives the
// dashboard synchronization layer against it.
package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jobsdashboard/internal/adapters/httpapi"
	"jobsdashboard/internal/blob"
	"jobsdashboard/internal/cache"
	"jobsdashboard/internal/client"
	"jobsdashboard/internal/config"
	"jobsdashboard/internal/core"
	"jobsdashboard/internal/entitymodel"
	"jobsdashboard/internal/observability"
	"jobsdashboard/internal/optimistic"
	"jobsdashboard/pkg/domain"
)

const shutdownTimeout = 10 * time.Second

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "jobsdashboard: %v\n", err)
		return 1
	}
	return 0
}

// app holds state shared by subcommands once the root pre-run has loaded it.
type app struct {
	configPath string
	verbose    bool
	cfg        config.Config
	zap        *zap.Logger
	logger     *observability.ZapLogger
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:           "jobsdashboard",
		Short:         "Job-board admin backend and dashboard sync client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.verbose {
				cfg.Log.Verbose = true
			}
			a.cfg = cfg
			a.zap = observability.NewProductionLogger(stderr, cfg.Log.Verbose)
			a.logger = observability.NewZapLogger(a.zap).Named(cmd.Name())
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.zap != nil {
				_ = a.zap.Sync()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(a.serveCmd(), a.exerciseCmd(), a.archiveCmd())
	return root
}

func (a *app) serveCmd() *cobra.Command {
	var (
		addr  string
		trace bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API with optional latency and failure injection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			handler, closeStore, err := a.buildServer(ctx, trace)
			if err != nil {
				return err
			}
			defer closeStore()
			return a.listen(ctx, handler)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&trace, "trace", false, "write a JSON trace line per service operation to stderr")
	return cmd
}

// buildServer assembles the REST handler plus metrics endpoints over the
// configured persistent store.
func (a *app) buildServer(ctx context.Context, trace bool) (http.Handler, func(), error) {
	store, err := core.OpenPersistentStore(ctx, a.cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	closeStore := func() {
		if c, ok := store.(io.Closer); ok {
			_ = c.Close()
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	prom, err := observability.NewPrometheusRecorder(reg, "jobsdashboard")
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	metrics := observability.MultiRecorder{prom, observability.NewExpvarMetricsRecorder("")}
	opts := []core.Option{core.WithLogger(a.logger.Named("core")), core.WithMetrics(metrics)}
	if trace {
		opts = append(opts, core.WithTracer(observability.NewJSONTracer(a.stderr)))
	}
	svc := core.NewService(store, opts...)

	mux := http.NewServeMux()
	mux.Handle(httpapi.Prefix, httpapi.Wrap(httpapi.NewHandler(svc, a.logger.Named("http")), a.cfg.Server, a.logger.Named("http")))
	mux.Handle("/api/openapi.yaml", entitymodel.NewOpenAPIHandler())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux, closeStore, nil
}

func (a *app) listen(ctx context.Context, handler http.Handler) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", "addr", srv.Addr, "storage", a.cfg.Storage.Driver,
			"latency", a.cfg.Server.Latency.String(), "failure_rate", a.cfg.Server.FailureRate)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// dashboard builds a client dashboard over the configured REST endpoint.
func (a *app) dashboard(baseURL string, blobs blob.Store) (*client.Dashboard, error) {
	if baseURL == "" {
		baseURL = a.cfg.Client.BaseURL
	}
	policy, err := optimistic.ParseRollbackPolicy(a.cfg.Client.Rollback)
	if err != nil {
		return nil, err
	}
	remotes, err := client.HTTPRemotes(baseURL, nil, a.cfg.Client.Timeout)
	if err != nil {
		return nil, err
	}
	opts := []client.DashboardOption{
		client.WithLogger(a.logger.Named("client")),
		client.WithRollbackPolicy(policy),
	}
	if blobs != nil {
		opts = append(opts, client.WithBlobStore(blobs))
	}
	d := client.NewDashboard(remotes, opts...)
	if p, ok := d.Companies.RollbackPolicy(); ok {
		a.logger.Debug("dashboard ready", "base_url", baseURL, "rollback", p.String())
	}
	return d, nil
}

func (a *app) exerciseCmd() *cobra.Command {
	var (
		baseURL string
		name    string
	)
	cmd := &cobra.Command{
		Use:   "exercise",
		Short: "Create, rename and delete a company through the optimistic cache, printing each list transition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := a.dashboard(baseURL, nil)
			if err != nil {
				return err
			}
			return exercise(cmd.Context(), d, name, a.stdout)
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "REST endpoint (overrides client.base_url)")
	cmd.Flags().StringVar(&name, "name", "Exercise Co", "company name to create")
	return cmd
}

func exercise(ctx context.Context, d *client.Dashboard, name string, out io.Writer) error {
	counts, err := d.LoadAll(ctx)
	if err != nil {
		return err
	}
	for _, kind := range domain.EntityTypes() {
		fmt.Fprintf(out, "loaded %-11s %d\n", kind.Resource(), counts[kind])
	}

	step := 0
	unsubscribe := d.Companies.Subscribe(func(c cache.Collection[domain.Company]) {
		step++
		fmt.Fprintf(out, "companies #%d: %s\n", step, describe(c))
	})
	defer unsubscribe()

	p, err := d.Companies.Add(ctx, domain.Company{Name: name})
	if err != nil {
		return err
	}
	created, err := p.Wait(ctx)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	p, err = d.Companies.Edit(ctx, created.ID, func(c *domain.Company) { c.Name = name + " (renamed)" })
	if err != nil {
		return err
	}
	if _, err := p.Wait(ctx); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	p, err = d.Companies.Remove(ctx, created.ID)
	if err != nil {
		return err
	}
	if _, err := p.Wait(ctx); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	d.Wait()
	return nil
}

func describe(c cache.Collection[domain.Company]) string {
	parts := make([]string, 0, c.Len())
	for _, item := range c.Items() {
		label := item.Name
		if domain.IsTemporaryID(item.ID) {
			label += "*"
		}
		parts = append(parts, label)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (a *app) archiveCmd() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Load every list and archive it to the configured blob store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			blobs, err := blob.Open(ctx, a.cfg.Blob)
			if err != nil {
				return fmt.Errorf("open blob store: %w", err)
			}
			d, err := a.dashboard(baseURL, blobs)
			if err != nil {
				return err
			}
			if _, err := d.LoadAll(ctx); err != nil {
				return err
			}
			written, err := d.Archive(ctx)
			if err != nil {
				return err
			}
			for _, kind := range written {
				fmt.Fprintln(a.stdout, client.ArchiveKey(kind))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "REST endpoint (overrides client.base_url)")
	return cmd
}
