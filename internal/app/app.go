package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cex-dex-arb-bot/internal/account"
	"cex-dex-arb-bot/internal/alerts"
	"cex-dex-arb-bot/internal/book"
	"cex-dex-arb-bot/internal/cex"
	"cex-dex-arb-bot/internal/config"
	"cex-dex-arb-bot/internal/exec"
	"cex-dex-arb-bot/internal/hl/exchange"
	"cex-dex-arb-bot/internal/hl/rest"
	"cex-dex-arb-bot/internal/hl/ws"
	"cex-dex-arb-bot/internal/market"
	"cex-dex-arb-bot/internal/metrics"
	"cex-dex-arb-bot/internal/state/sqlite"
	"cex-dex-arb-bot/internal/strategy"
	"cex-dex-arb-bot/internal/timescale"
	"cex-dex-arb-bot/internal/userstream"

	"go.uber.org/zap"
)

const shutdownGrace = 5 * time.Second

// App owns every component and the run loop.
type App struct {
	cfg       *config.Config
	log       *zap.Logger
	store     *sqlite.Store
	board     *book.PriceBoard
	cexClient *cex.Client
	dexRest   *rest.Client
	dexEx     *exchange.Client
	wallet    string
	metrics   *metrics.Metrics
	prom      *metrics.Prometheus
	alerts    *alerts.Telegram
	writer    *timescale.Writer
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	apiKey := strings.TrimSpace(os.Getenv("BINANCE_API_KEY"))
	secretKey := strings.TrimSpace(os.Getenv("BINANCE_SECRET_KEY"))
	if apiKey == "" || secretKey == "" {
		return nil, errors.New("BINANCE_API_KEY and BINANCE_SECRET_KEY are required")
	}
	wallet := strings.TrimSpace(os.Getenv("HL_WALLET_ADDRESS"))
	privateKey := strings.TrimSpace(os.Getenv("HL_PRIVATE_KEY"))
	if wallet == "" || privateKey == "" {
		return nil, errors.New("HL_WALLET_ADDRESS and HL_PRIVATE_KEY are required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}

	signer, err := exchange.NewSigner(privateKey, !cfg.DEX.Testnet)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(wallet, signer.Address().Hex()) {
		return nil, fmt.Errorf("wallet address does not match private key: got %s expected %s", wallet, signer.Address().Hex())
	}
	dexEx, err := exchange.NewClient(cfg.DEX.RESTURL, cfg.DEX.RESTTimeout, signer, "")
	if err != nil {
		return nil, err
	}
	dexEx.SetLogger(log)

	m := metrics.NewNoop()
	var prom *metrics.Prometheus
	if cfg.Metrics.Listen != "" {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	return &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		board:     book.NewPriceBoard(feesFromConfig(cfg), cfg.Strategy.MaxQuoteAge),
		cexClient: cex.New(apiKey, secretKey, cfg.CEX.Testnet, cfg.CEX.WSURL, log),
		dexRest:   rest.New(cfg.DEX.RESTURL, cfg.DEX.RESTTimeout, log),
		dexEx:     dexEx,
		wallet:    wallet,
		metrics:   m,
		prom:      prom,
		alerts:    alerts.NewTelegram(cfg.Telegram, log),
		writer:    nil,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()

	if err := a.dexEx.InitNonceStore(ctx, a.store); err != nil {
		a.log.Warn("nonce store init failed", zap.Error(err))
	}

	// Precision first: nothing may be placed before tick/step is known.
	if err := a.cexClient.RefreshFilters(ctx); err != nil {
		return fmt.Errorf("cex filters: %w", err)
	}
	metas, err := a.dexRest.Meta(ctx)
	if err != nil {
		return fmt.Errorf("dex meta: %w", err)
	}
	meta, ok := metas[a.cfg.DEX.Symbol]
	if !ok {
		return fmt.Errorf("dex symbol %q missing from meta universe", a.cfg.DEX.Symbol)
	}

	dexPrices := func(side book.Side) (float64, bool) {
		return a.board.Price(book.VenueDEX, side)
	}
	drivers := map[book.Venue]exec.Driver{
		book.VenueCEX: exec.NewCEXDriver(a.cexClient),
		book.VenueDEX: exec.NewDEXDriver(a.dexEx, a.dexRest, a.wallet, a.cfg.DEX.Symbol, meta, dexPrices),
	}
	executor := exec.New(drivers, a.log, a.metrics)
	machine := strategy.NewMachine(strategyConfigFromConfig(a.cfg), a.board, executor, a.log, a.metrics, a.alerts)

	// Startup reconciliation decides whether we may run at all.
	reconciler := account.NewReconciler(
		a.cexClient,
		account.NewDEXAdapter(a.dexRest, a.wallet),
		a.cfg.CEX.Symbol,
		a.cfg.DEX.Symbol,
		lotTolerance(executor, a.cfg),
		a.log,
	)
	initialState, heldQty, err := reconciler.Reconcile(ctx)
	if err != nil {
		if errors.Is(err, account.ErrPositionMismatch) {
			a.alerts.Notify(ctx, "arb-bot refusing to start: "+err.Error())
		}
		return err
	}
	machine.SetInitial(initialState, heldQty)
	a.log.Info("initial state chosen", zap.String("state", string(initialState)), zap.Float64("held_qty", heldQty))

	if a.writer, err = timescale.New(a.cfg.Timescale, a.log); err != nil {
		return err
	}
	a.writer.Start(ctx)
	defer a.writer.Close()

	if a.prom != nil {
		go a.serveMetrics(ctx)
	}

	// Market data: DEX l2Book silent, CEX ticks drive the signal.
	feed := market.NewFeed(
		a.board,
		ws.New(a.cfg.DEX.WSURL, a.cfg.DEX.ReconnectDelay, a.cfg.DEX.PingInterval, a.log),
		a.cexClient,
		a.cfg.CEX.Symbol,
		a.cfg.DEX.Symbol,
		a.cfg.Strategy.BookDepth,
		a.log,
	)
	feed.SetSignalHook(machine.SignalCheck)
	if err := feed.Start(ctx); err != nil {
		return err
	}

	// User streams: terminal events drive the machine.
	dexUserWS := ws.New(a.cfg.DEX.WSURL, a.cfg.DEX.ReconnectDelay, a.cfg.DEX.PingInterval, a.log)
	dexStream := userstream.NewDEXStream(dexUserWS, a.wallet, machine, a.log)
	if err := dexStream.Start(ctx, machine); err != nil {
		return err
	}
	cexStream := userstream.NewCEXStream(a.cexClient, machine, a.log)
	go func() {
		if err := cexStream.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.Error("cex user stream terminated", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.shutdown(machine)
			return ctx.Err()
		case <-ticker.C:
			machine.OnTimerTick(ctx)
			a.sample(machine)
		}
	}
}

// sample feeds the observability sinks once per tick.
func (a *App) sample(machine *strategy.Machine) {
	openEdge, closeEdge, ok := a.board.NetSpread()
	if ok {
		a.metrics.OpenEdge.Set(openEdge)
		a.metrics.CloseEdge.Set(closeEdge)
	}
	if a.writer == nil {
		return
	}
	now := time.Now().UTC()
	if ok {
		quotes := a.board.Snapshot()
		a.writer.EnqueueEdge(timescale.EdgeSample{
			Time:      now,
			CEXBid:    quotes[book.VenueCEX].Bid,
			CEXAsk:    quotes[book.VenueCEX].Ask,
			DEXBid:    quotes[book.VenueDEX].Bid,
			DEXAsk:    quotes[book.VenueDEX].Ask,
			OpenEdge:  openEdge,
			CloseEdge: closeEdge,
		})
	}
	a.writer.EnqueuePosition(timescale.PositionSnapshot{
		Time:      now,
		State:     string(machine.State()),
		CEXSymbol: a.cfg.CEX.Symbol,
		DEXSymbol: a.cfg.DEX.Symbol,
		HeldQty:   machine.HeldQty(),
	})
}

// shutdown cancels any in-flight order on a fresh context before exit.
func (a *App) shutdown(machine *strategy.Machine) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	machine.CancelInflight(ctx)
}

func (a *App) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.prom.Handler())
	srv := &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.log.Warn("metrics server failed", zap.Error(err))
	}
}

func feesFromConfig(cfg *config.Config) book.FeeSchedule {
	return book.FeeSchedule{
		CEXMaker: cfg.CEX.MakerFee,
		CEXTaker: cfg.CEX.TakerFee,
		DEXMaker: cfg.DEX.MakerFee,
		DEXTaker: cfg.DEX.TakerFee,
	}
}

func strategyConfigFromConfig(cfg *config.Config) strategy.Config {
	return strategy.Config{
		CEXSymbol:          cfg.CEX.Symbol,
		DEXSymbol:          cfg.DEX.Symbol,
		CycleQty:           cfg.Strategy.CycleQty,
		MinSpreadThreshold: cfg.Strategy.MinSpreadThreshold,
		OrderTimeout:       cfg.Strategy.OrderTimeout,
		CancelTimeout:      cfg.Strategy.CancelTimeout,
		CancelRetries:      cfg.Strategy.CancelRetries,
		ChaseLimitAttempts: cfg.Strategy.ChaseLimitAttempts,
	}
}

// lotTolerance uses the coarser of the two venues' lot steps as the
// reconciler's size-match tolerance.
func lotTolerance(executor *exec.Executor, cfg *config.Config) float64 {
	tol := 1e-6
	if step, ok := executor.LotStep(book.VenueCEX, cfg.CEX.Symbol); ok && step > tol {
		tol = step
	}
	if step, ok := executor.LotStep(book.VenueDEX, cfg.DEX.Symbol); ok && step > tol {
		tol = step
	}
	return tol
}
