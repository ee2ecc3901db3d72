package signal

import (
	"math"

	"github.com/aochii2021/rss-sample-sub000/internal/config"
	"github.com/aochii2021/rss-sample-sub000/internal/domain"
	"github.com/aochii2021/rss-sample-sub000/internal/session"
)

// exitContext bundles everything an exit predicate may consult for one bar.
type exitContext struct {
	cfg    config.SignalConfig
	clock  *session.Clock
	pos    domain.Position
	tick   Tick
	tr     *Tracker
	levels []domain.Level
	gain   float64
	held   int
}

type exitRule struct {
	reason domain.ExitReason
	match  func(exitContext) bool
}

// exitRules returns the exit predicates in precedence order. The session
// boundary always wins; the hard take-profit/stop/timeout rules come before
// the profit-taking and early-stop heuristics.
func exitRules() []exitRule {
	return []exitRule{
		{domain.ExitSessionEnd, exitSessionEnd},
		{domain.ExitTakeProfit, exitTakeProfit},
		{domain.ExitStopLoss, exitStopLoss},
		{domain.ExitTimeout, exitTimeout},
		{domain.ExitHalfRetrace, exitHalfRetrace},
		{domain.ExitNearLevel, exitNearLevel},
		{domain.ExitMomentum, exitMomentum},
		{domain.ExitEarlyStop, exitEarlyStop},
	}
}

func exitSessionEnd(c exitContext) bool {
	return c.clock.MustExit(c.tick.Time)
}

func exitTakeProfit(c exitContext) bool {
	return c.gain >= c.cfg.TakeProfitTicks
}

func exitStopLoss(c exitContext) bool {
	return c.gain <= -c.cfg.StopLossTicks
}

func exitTimeout(c exitContext) bool {
	return c.held >= c.cfg.MaxHoldBars
}

// exitHalfRetrace locks in profit after a sharp favourable move gives back
// half its recent peak. Only fires while still above the profit floor.
func exitHalfRetrace(c exitContext) bool {
	peak := c.tr.PeakWithin(c.cfg.SharpMoveWindow)
	return peak >= c.cfg.SharpMoveTicks &&
		c.gain <= peak/2 &&
		c.gain > c.cfg.ProfitFloorTicks
}

// exitNearLevel takes profit when price closes in on the next level ahead of
// the trade, rather than betting on a clean break through it.
func exitNearLevel(c exitContext) bool {
	if c.gain < c.cfg.ProfitFloorTicks {
		return false
	}
	next, ok := nextLevelAhead(c.pos, c.levels)
	if !ok {
		return false
	}
	return math.Abs(next.Price-c.tick.Price) <= c.cfg.NearLevelTicks
}

// exitMomentum takes profit once opposing book pressure appears after the
// minimum hold.
func exitMomentum(c exitContext) bool {
	return c.tick.Features != nil &&
		c.held >= c.cfg.MinHoldBars &&
		c.gain >= c.cfg.ProfitFloorTicks &&
		opposing(c.tick.Features, c.pos.Direction) >= 2
}

// exitEarlyStop cuts a losing position before the full stop distance when
// the book turns strongly against it.
func exitEarlyStop(c exitContext) bool {
	if c.tick.Features == nil || c.gain >= 0 || c.held < c.cfg.MinHoldBars {
		return false
	}
	if c.gain <= -c.cfg.StopLossTicks {
		return false
	}
	ofi := c.tick.Features.OrderFlowImbalance
	return opposing(c.tick.Features, c.pos.Direction) >= 2 &&
		!math.IsNaN(ofi) &&
		math.Abs(ofi) >= c.cfg.OFIStrong &&
		ofi*c.pos.Direction.Sign() < 0
}

// nextLevelAhead returns the nearest level strictly beyond the entry level
// in the trade's direction.
func nextLevelAhead(pos domain.Position, levels []domain.Level) (domain.Level, bool) {
	var (
		best  domain.Level
		found bool
	)
	for _, lvl := range levels {
		if pos.Direction == domain.DirectionLong {
			if lvl.Price <= pos.Level.Price {
				continue
			}
			if !found || lvl.Price < best.Price {
				best, found = lvl, true
			}
		} else {
			if lvl.Price >= pos.Level.Price {
				continue
			}
			if !found || lvl.Price > best.Price {
				best, found = lvl, true
			}
		}
	}
	return best, found
}
