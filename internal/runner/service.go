// Package runner drives the trading cycle: price ticks update the
// pair spreads, the alpha model emits signals, the portfolio layer
// turns them into targets, the executor works the targets through the
// brokerage aggregator, and the ledger retires what is done. Grid
// state survives restarts through the backup store.
package runner

import (
	"context"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"arb_bot/internal/grid"
	"arb_bot/internal/metrics"
	"arb_bot/internal/models"
	alphaservice "arb_bot/internal/modules/alpha/service"
	backupservice "arb_bot/internal/modules/backup/service"
	brokerage "arb_bot/internal/modules/brokerage/service"
	"arb_bot/internal/modules/config"
	healthservice "arb_bot/internal/modules/health/service"
	portfolioservice "arb_bot/internal/modules/portfolio/service"
	"arb_bot/internal/notify"
	"arb_bot/internal/signals"
	"arb_bot/pkg/logger"
)

type Runner struct {
	cfg          *config.Config
	book         *grid.Book
	alpha        *alphaservice.AlphaModel
	sigs         *signals.Collection
	construction *portfolioservice.ConstructionModel
	ledger       *portfolioservice.TargetLedger
	exec         *Executor
	agg          *brokerage.Aggregator
	store        backupservice.Store
	notifier     notify.Notifier
	health       *healthservice.State

	ticks chan models.PriceTick
}

func NewRunner(
	cfg *config.Config,
	book *grid.Book,
	alpha *alphaservice.AlphaModel,
	sigs *signals.Collection,
	construction *portfolioservice.ConstructionModel,
	ledger *portfolioservice.TargetLedger,
	exec *Executor,
	agg *brokerage.Aggregator,
	store backupservice.Store,
	notifier notify.Notifier,
	health *healthservice.State,
) *Runner {
	return &Runner{
		cfg:          cfg,
		book:         book,
		alpha:        alpha,
		sigs:         sigs,
		construction: construction,
		ledger:       ledger,
		exec:         exec,
		agg:          agg,
		store:        store,
		notifier:     notifier,
		health:       health,
		ticks:        make(chan models.PriceTick, 1024),
	}
}

// Ticks is the inbound price feed. Market-data adapters push here.
func (r *Runner) Ticks() chan<- models.PriceTick { return r.ticks }

// RegisterPairs builds trading pairs from config and adds them to the
// book. Must run before Restore so snapshots find their pairs.
func RegisterPairs(cfg *config.Config, book *grid.Book) error {
	for _, pc := range cfg.Pairs {
		lot1, err := decimal.NewFromString(pc.Lot1)
		if err != nil {
			return err
		}
		lot2, err := decimal.NewFromString(pc.Lot2)
		if err != nil {
			return err
		}

		levels := make([]models.GridLevelPair, 0, len(pc.Levels))
		for _, lc := range pc.Levels {
			entry, err := decimal.NewFromString(lc.Entry)
			if err != nil {
				return err
			}
			exit, err := decimal.NewFromString(lc.Exit)
			if err != nil {
				return err
			}
			frac, err := decimal.NewFromString(lc.Fraction)
			if err != nil {
				return err
			}
			lp, err := models.NewGridLevelPair(models.SpreadDirection(lc.Direction), entry, exit, frac)
			if err != nil {
				return err
			}
			levels = append(levels, lp)
		}

		book.AddPair(grid.NewTradingPair(pc.Leg1, pc.Leg2, lot1, lot2, levels))
		logger.Info("registered pair %s/%s with %d grid levels", pc.Leg1, pc.Leg2, len(levels))
	}
	return nil
}

// RemovePair tears a pair down in the safe order: live signals first,
// then the book entry.
func (r *Runner) RemovePair(leg1, leg2 string, now time.Time) bool {
	r.alpha.CancelPairSignals(leg1, leg2, now)
	_, ok := r.book.RemovePair(leg1, leg2)
	return ok
}

// Evaluate runs one trading cycle. Cycles are serialized by Run, so
// signal generation, target construction and order placement never
// race against each other.
func (r *Runner) Evaluate(ctx context.Context, now time.Time) {
	emitted := r.alpha.OnTick(now)
	for _, s := range emitted {
		metrics.SignalsEmitted.WithLabelValues(string(s.Direction)).Inc()
		r.notifier.Sendf("signal %s %s (%s)", s.Direction, s.InstID, s.Reason)
	}

	targets := r.construction.CreateTargets(r.sigs.GetActiveSignals(now))

	expired := r.sigs.SweepExpired(now)
	if len(expired) > 0 {
		targets = append(targets, r.construction.FlattenExpired(expired, func(instID string) bool {
			return r.sigs.ActiveOnInstrument(instID, now)
		})...)
	}

	if len(targets) > 0 {
		metrics.TargetsBuilt.Add(float64(len(targets)))
		r.ledger.Upsert(targets)
	}

	r.exec.Execute(ctx, r.ledger.Entries())

	if cleared := r.ledger.ClearFulfilled(r.exec); len(cleared) > 0 {
		logger.Info("cleared %d fulfilled ledger entries", len(cleared))
	}

	for _, p := range r.book.Pairs() {
		p.SweepFlat()
	}

	r.health.TouchEval(now)
}

// Run is the main loop: ticks, evaluation timer, periodic backups.
// Everything that mutates trading state happens on this goroutine.
func (r *Runner) Run(ctx context.Context) {
	eval := time.NewTicker(r.cfg.EvalEvery)
	defer eval.Stop()
	backup := time.NewTicker(r.cfg.Backup.Every)
	defer backup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-r.ticks:
			r.book.UpdatePrice(tick.InstID, tick.Price, tick.Time)
			r.health.TouchTick(tick.Time)
		case now := <-eval.C:
			r.Evaluate(ctx, now)
		case now := <-backup.C:
			r.Backup(ctx, now)
		}
	}
}

// ConsumeEvents drains the aggregator streams. Order events feed the
// executor; messages and assignments go to the operator.
func (r *Runner) ConsumeEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.agg.OrderEvents():
			if !ok {
				return
			}
			r.exec.OnOrderEvent(ev)
		case ev, ok := <-r.agg.AccountEvents():
			if !ok {
				return
			}
			logger.Info("account %s balance %s %s", ev.Account, ev.Balance, ev.Currency)
		case ev, ok := <-r.agg.Messages():
			if !ok {
				return
			}
			r.notifier.Sendf("broker %s: [%s] %s", ev.Account, ev.Code, ev.Text)
		case ev, ok := <-r.agg.Assignments():
			if !ok {
				return
			}
			r.notifier.Sendf("assignment on %s: %s %s", ev.Account, ev.InstID, ev.Qty)
		}
	}
}

// Backup snapshots the grid state under a timestamped key.
func (r *Runner) Backup(ctx context.Context, now time.Time) {
	snap := r.book.Snapshot(now)
	data, err := sonic.Marshal(snap)
	if err != nil {
		logger.Error("backup: marshal snapshot: %v", err)
		return
	}

	key := backupservice.BackupKey(r.cfg.Backup.Owner, r.cfg.Backup.Tier, now)
	if !r.store.Save(ctx, key, data) {
		logger.Error("backup: save %s failed", key)
		return
	}
	logger.Info("backup saved: %s (%d positions)", key, len(snap.Positions))
}

// Restore loads the newest snapshot, if any. Keys are timestamped and
// sort lexicographically, so the newest backup is the largest key.
func (r *Runner) Restore(ctx context.Context) {
	prefix := backupservice.BackupPrefix(r.cfg.Backup.Owner, r.cfg.Backup.Tier)
	keys := r.store.ListKeys(ctx, prefix)
	if len(keys) == 0 {
		logger.Info("restore: no backups under %s, starting clean", prefix)
		return
	}
	sort.Strings(keys)
	newest := keys[len(keys)-1]

	data, ok := r.store.Read(ctx, newest)
	if !ok {
		logger.Error("restore: read %s failed, starting clean", newest)
		return
	}

	var snap grid.BookSnapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		logger.Error("restore: unmarshal %s: %v, starting clean", newest, err)
		return
	}

	restored := r.book.Restore(snap)
	logger.Info("restored %d positions from %s (taken %s)", restored, newest, snap.TakenAt.Format(time.RFC3339))
}
