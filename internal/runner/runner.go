package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mintrunner/internal/contract"
	"mintrunner/internal/metrics"
	"mintrunner/internal/mint"
	"mintrunner/internal/model"
	"mintrunner/internal/storage"
	"mintrunner/internal/supply"
)

// RunConfig holds runtime settings for one accounting run.
type RunConfig struct {
	Reserved              mint.ReservedAddresses
	PerTokenAllowance     uint64
	IncludeExternalSupply bool
	RequireExternalSupply bool
	Table                 string
	Policy                mint.ScanPolicy
	PushgatewayURL        string
}

// BlockSource reports the chain head.
type BlockSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// SupplySource reports the externally published profile supply.
type SupplySource interface {
	Fetch(ctx context.Context) (supply.Result, error)
}

// Deps are the resource handles a run uses. The caller owns and releases them.
type Deps struct {
	Chain          BlockSource
	GenesisKey     *contract.Contract
	ProfileAuction *contract.Contract
	Supply         SupplySource
	Sinks          []storage.Storage
	Metrics        *metrics.RunGauges
}

// Result describes a completed run.
type Result struct {
	RunID      string
	Accounting mint.MintAccounting
	Scan       mint.ClaimScan
	Row        model.MintRow
}

// Runner reads chain state, derives the mint accounting and writes one row.
type Runner struct {
	cfg    RunConfig
	deps   Deps
	logger *zap.Logger
	runID  string
	now    func() time.Time
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, deps Deps, logger *zap.Logger) *Runner {
	runID := uuid.NewString()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(zap.String("run_id", runID)),
		runID:  runID,
		now:    time.Now,
	}
}

// RunID identifies this runner's log lines and rows.
func (r *Runner) RunID() string {
	return r.runID
}

func (r *Runner) check() error {
	if r.deps.Chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.deps.GenesisKey == nil {
		return fmt.Errorf("genesis key contract is nil")
	}
	return nil
}

// Inspect reads the reserved balances at the chain head.
func (r *Runner) Inspect(ctx context.Context) (mint.BalanceSnapshot, error) {
	if err := r.check(); err != nil {
		return mint.BalanceSnapshot{}, err
	}
	block, err := r.deps.Chain.LatestBlockNumber(ctx)
	if err != nil {
		return mint.BalanceSnapshot{}, fmt.Errorf("get latest block: %w", err)
	}
	return r.readBalances(ctx, block)
}

// Run executes the pipeline once.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if err := r.check(); err != nil {
		return Result{}, err
	}
	if r.deps.ProfileAuction == nil {
		return Result{}, fmt.Errorf("profile auction contract is nil")
	}
	if r.cfg.IncludeExternalSupply && r.deps.Supply == nil {
		return Result{}, fmt.Errorf("external supply enabled without a source")
	}
	if len(r.deps.Sinks) == 0 {
		return Result{}, fmt.Errorf("no storage configured")
	}

	started := r.now()
	block, err := r.deps.Chain.LatestBlockNumber(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("get latest block: %w", err)
	}

	balances, err := r.readBalances(ctx, block)
	if err != nil {
		return Result{}, err
	}

	r.logger.Info("claim scan start", zap.Uint64("block", block), zap.Uint64("tokens", balances.QueryableSupply()))
	claims := contract.ProfileAuction{Contract: r.deps.ProfileAuction.AtBlock(block)}
	scan, err := mint.ScanClaims(ctx, claims, balances.QueryableSupply(), r.cfg.Policy, r.logger)
	if err != nil {
		return Result{}, fmt.Errorf("scan claims: %w", err)
	}

	acc, err := mint.ComputeAccounting(balances, scan.Counts, r.cfg.PerTokenAllowance)
	if err != nil {
		return Result{}, fmt.Errorf("compute accounting: %w", err)
	}
	if !scan.Complete() {
		acc = mint.MarkDegraded(acc, fmt.Sprintf("claim scan stopped at token %d of %d: %s", scan.StoppedAt, acc.QueryableSupply, scan.StopReason))
	}

	switch {
	case !r.cfg.IncludeExternalSupply:
	case !scan.Complete():
		if r.cfg.RequireExternalSupply {
			return Result{}, fmt.Errorf("%w: claim scan incomplete", supply.ErrDegraded)
		}
		r.logger.Warn("skipping external supply", zap.String("reason", "claim scan incomplete"))
	default:
		acc, err = r.applyExternalSupply(ctx, acc)
		if err != nil {
			return Result{}, err
		}
	}

	row := buildRow(r.runID, started, acc)
	if row.Degraded {
		r.logger.Warn("writing degraded row", zap.Strings("reasons", row.DegradedReasons))
	}
	for _, sink := range r.deps.Sinks {
		if err := sink.PutMintRow(ctx, row); err != nil {
			return Result{}, fmt.Errorf("store mint row: %w", err)
		}
	}

	r.pushMetrics(ctx, row)

	fields := []zap.Field{
		zap.Uint64("block", block),
		zap.Int64("free_mints", row.FreeMints),
		zap.Uint64("used_mints", row.UsedMints),
		zap.Uint64("gk_in_circulation", row.GKInCirculation),
		zap.Bool("degraded", row.Degraded),
		zap.Duration("elapsed", r.now().Sub(started)),
	}
	if row.PublicMints != nil {
		fields = append(fields, zap.Int64("public_mints", *row.PublicMints))
	}
	r.logger.Info("run complete", fields...)

	return Result{RunID: r.runID, Accounting: acc, Scan: scan, Row: row}, nil
}

func (r *Runner) readBalances(ctx context.Context, block uint64) (mint.BalanceSnapshot, error) {
	gk := contract.GenesisKey{Contract: r.deps.GenesisKey.AtBlock(block)}
	balances, err := mint.ReadBalances(ctx, gk, r.cfg.Reserved, block, r.cfg.Policy, r.logger)
	if err != nil {
		return mint.BalanceSnapshot{}, fmt.Errorf("read balances: %w", err)
	}

	r.logger.Info("balances",
		zap.Uint64("block", block),
		zap.Uint64("genesis", balances.GenesisPool),
		zap.Uint64("treasury", balances.Treasury),
		zap.Uint64("insider", balances.Insider),
		zap.Uint64("circulating_supply", balances.CirculatingSupply()),
		zap.Uint64("queryable_supply", balances.QueryableSupply()),
		zap.Uint64("insider_claim_eligible", balances.Insider),
	)
	return balances, nil
}

func (r *Runner) applyExternalSupply(ctx context.Context, acc mint.MintAccounting) (mint.MintAccounting, error) {
	res, err := r.deps.Supply.Fetch(ctx)
	if err != nil {
		return acc, fmt.Errorf("fetch external supply: %w", err)
	}
	if !res.OK {
		if r.cfg.RequireExternalSupply {
			return acc, fmt.Errorf("%w: %s", supply.ErrDegraded, res.Reason)
		}
		return mint.MarkDegraded(acc, "external supply: "+res.Reason), nil
	}
	return mint.WithExternalSupply(acc, res.Total)
}

func (r *Runner) pushMetrics(ctx context.Context, row model.MintRow) {
	if r.deps.Metrics == nil || r.cfg.PushgatewayURL == "" {
		return
	}
	r.deps.Metrics.Observe(row, r.now())
	if err := r.deps.Metrics.Push(ctx, r.cfg.PushgatewayURL, r.cfg.Table); err != nil {
		r.logger.Warn("push metrics failed", zap.Error(err))
	}
}

func buildRow(runID string, runDate time.Time, acc mint.MintAccounting) model.MintRow {
	return model.MintRow{
		RunID:             runID,
		RunDate:           runDate,
		Block:             acc.Balances.Block,
		FreeMints:         acc.UnmintedCount,
		UsedMints:         acc.MintedCount,
		GKInCirculation:   acc.CirculatingSupply,
		GKUnclaimed:       acc.Balances.GenesisPool,
		TreasuryUnclaimed: acc.Balances.Treasury,
		InsiderUnclaimed:  acc.Balances.Insider,
		PublicMints:       acc.PublicMintedCount,
		Degraded:          acc.Degraded,
		DegradedReasons:   acc.DegradedReasons,
	}
}
