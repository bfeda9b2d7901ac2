// ledger es la herramienta de operación del ledger de inventario: migraciones, semilla de contadores
// y consultas puntuales (on-hand, trazas por correlación, cadenas de corrección, numeración).
//
// Uso: go run ./cmd/ledger <comando> [argumentos]
// La configuración se lee de env / .env (ver pkg/config).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jhoicas/stockledger/internal/application/identifier"
	"github.com/jhoicas/stockledger/internal/application/ledger"
	"github.com/jhoicas/stockledger/internal/application/retry"
	"github.com/jhoicas/stockledger/internal/application/sequence"
	"github.com/jhoicas/stockledger/internal/domain"
	"github.com/jhoicas/stockledger/internal/domain/luhn"
	"github.com/jhoicas/stockledger/internal/infrastructure/metrics"
	"github.com/jhoicas/stockledger/pkg/config"
	"github.com/jhoicas/stockledger/pkg/logger"
)

const usage = `uso: ledger <comando> [argumentos]

comandos:
  migrate                              aplica las migraciones pendientes
  seed                                 crea los contadores MOVEMENT y BATCH si no existen
  next <categoria> [solicitante]       emite el siguiente número formateado de la categoría
  batch [AAAA-MM-DD] [--luhn]          emite un número de lote
  onhand <item> [asOf RFC3339] [ubic]  reconstruye cantidad y valoración a la fecha
  trace <correlation_id>               lista los movimientos de una correlación
  chain <movement_number>              muestra la cadena de correcciones de un movimiento
  luhn <digitos>                       calcula el dígito de control y valida la cadena
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("argumentos inválidos")

func run(cmd string, args []string, out io.Writer) error {
	// luhn no necesita almacenamiento.
	if cmd == "luhn" {
		return runLuhn(args, out)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("cargar configuración: %w", err)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheusRecorder(reg, "stockledger")
	if err != nil {
		return err
	}
	defer func() {
		if cfg.Ledger.MetricsTextfile == "" {
			return
		}
		if err := prometheus.WriteToTextfile(cfg.Ledger.MetricsTextfile, reg); err != nil {
			log.Warn().Err(err).Str("path", cfg.Ledger.MetricsTextfile).Msg("escribir métricas")
		}
	}()

	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	if cmd == "migrate" {
		if err := st.migrate(ctx); err != nil {
			return err
		}
		log.Info().Str("driver", cfg.Ledger.Driver).Msg("migraciones aplicadas")
		return nil
	}

	policy := retry.Policy{
		MaxAttempts:     cfg.Ledger.AppendMaxAttempts,
		InitialInterval: cfg.Ledger.RetryInitialInterval,
		MaxInterval:     cfg.Ledger.RetryMaxInterval,
	}
	seqSvc := sequence.NewService(st.runner, st.seqRepo, rec, log, policy)
	ledgerSvc := ledger.NewService(st.runner, st.movRepo, rec, log, ledger.Options{
		MovementCategory: cfg.Ledger.MovementCategory,
		ScanCheckpoint:   cfg.Ledger.ScanCheckpoint,
		Policy:           policy,
	})
	idSvc := identifier.NewService(st.runner, cfg.Ledger.BatchCategory, rec, log, policy)

	switch cmd {
	case "seed":
		return runSeed(ctx, seqSvc, cfg.Ledger, out)
	case "next":
		return runNext(ctx, seqSvc, args, out)
	case "batch":
		return runBatch(ctx, idSvc, args, out)
	case "onhand":
		return runOnHand(ctx, ledgerSvc, args, out)
	case "trace":
		return runTrace(ctx, ledgerSvc, args, out)
	case "chain":
		return runChain(ctx, ledgerSvc, args, out)
	}
	return fmt.Errorf("%w: comando %q desconocido", errUsage, cmd)
}

func runSeed(ctx context.Context, svc *sequence.Service, lc config.LedgerConfig, out io.Writer) error {
	seeds := []sequence.CreateCategoryInput{
		{Category: lc.MovementCategory, Prefix: lc.MovementPrefix, PaddingWidth: lc.MovementPadding, StartingValue: 1, CreatedBy: "seed"},
		{Category: lc.BatchCategory, Prefix: "LOT", PaddingWidth: 5, StartingValue: 1, CreatedBy: "seed"},
	}
	for _, in := range seeds {
		c, err := svc.EnsureCategory(ctx, in)
		if err != nil {
			return fmt.Errorf("categoría %s: %w", in.Category, err)
		}
		fmt.Fprintf(out, "%-12s prefix=%s padding=%d current=%d active=%t\n",
			c.Category, c.Prefix, c.PaddingWidth, c.CurrentValue, c.IsActive)
	}
	return nil
}

func runNext(ctx context.Context, svc *sequence.Service, args []string, out io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	requestedBy := "cli"
	if len(args) > 1 {
		requestedBy = args[1]
	}
	n, err := svc.GetNextFormatted(ctx, args[0], requestedBy)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, n)
	return nil
}

func runBatch(ctx context.Context, svc *identifier.Service, args []string, out io.Writer) error {
	date := time.Now().UTC()
	withCheck := false
	for _, a := range args {
		if a == "--luhn" {
			withCheck = true
			continue
		}
		d, err := time.Parse(time.DateOnly, a)
		if err != nil {
			return fmt.Errorf("%w: fecha %q", errUsage, a)
		}
		date = d
	}
	n, err := svc.GenerateBatchNumber(ctx, date, "cli", withCheck)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, n)
	return nil
}

func runOnHand(ctx context.Context, svc *ledger.Service, args []string, out io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	item := args[0]
	asOf := time.Now().UTC()
	if len(args) > 1 {
		t, err := time.Parse(time.RFC3339Nano, args[1])
		if err != nil {
			return fmt.Errorf("%w: asOf %q", errUsage, args[1])
		}
		asOf = t
	}
	filter := ledger.AllLocations
	if len(args) > 2 {
		filter = ledger.LocationFilter(args[2])
	}

	qty, err := svc.ComputeOnHand(ctx, item, asOf, filter)
	if err != nil {
		return err
	}
	value, err := svc.ComputeValuation(ctx, item, asOf, filter)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "item=%s asOf=%s on_hand=%d valuation=%s\n", item, asOf.UTC().Format(time.RFC3339Nano), qty, value.StringFixed(2))

	if filter != ledger.AllLocations {
		return nil
	}
	byLoc, err := svc.ComputeOnHandByLocation(ctx, item, asOf)
	if err != nil {
		return err
	}
	for loc, q := range byLoc {
		if loc == "" {
			loc = "(sin ubicación)"
		}
		fmt.Fprintf(out, "  %-20s %d\n", loc, q)
	}
	return nil
}

func runTrace(ctx context.Context, svc *ledger.Service, args []string, out io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	movs, err := svc.GetByCorrelation(ctx, args[0])
	if err != nil {
		return err
	}
	if len(movs) == 0 {
		return fmt.Errorf("%w: correlación %q sin movimientos", domain.ErrNotFound, args[0])
	}
	for _, m := range movs {
		fmt.Fprintf(out, "%s %-11s item=%s qty=%d loc=%s actor=%s/%s source=%s recorded=%s\n",
			m.MovementNumber, m.Kind, m.ItemKey, m.Quantity, m.Location(),
			m.Actor.ActorType, m.Actor.ActorID, m.Actor.Source, m.RecordedAt.Format(time.RFC3339Nano))
	}
	return nil
}

func runChain(ctx context.Context, svc *ledger.Service, args []string, out io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	chain, err := svc.GetCorrectionChain(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s qty=%d\n", chain.Original.MovementNumber, chain.Original.Quantity)
	for _, c := range chain.Corrections {
		fmt.Fprintf(out, "  %s delta=%+d reason=%q\n", c.MovementNumber, c.Quantity, c.Reason)
	}
	fmt.Fprintf(out, "efectiva=%d\n", chain.EffectiveQuantity)
	return nil
}

func runLuhn(args []string, out io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	check, err := luhn.Calculate(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "check=%d con_check=%s%d\n", check, args[0], check)
	if len(args[0]) >= 2 {
		ok, err := luhn.Validate(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "valida_como_completa=%t\n", ok)
	}
	return nil
}
