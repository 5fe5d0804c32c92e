package risk

import (
	"sort"
	"time"

	"github.com/rustyeddy/daytrader/market"
)

// Rule caps the open order count for a direction. When the count reaches
// MaxOrderCount the manager emits a reduction action and puts the rule on
// cooldown.
type Rule struct {
	MaxOrderCount         int    `json:"max_order_count" yaml:"max_order_count"`
	AppliesTo             string `json:"applies_to" yaml:"applies_to"` // buy | sell | both
	DecreaseAmount        int    `json:"decrease_amount" yaml:"decrease_amount"`
	CooldownMinutes       int    `json:"cooldown_minutes" yaml:"cooldown_minutes"`
	ResetCounterOnTrigger bool   `json:"reset_counter_on_trigger" yaml:"reset_counter_on_trigger"`
}

// Action is one triggered rule's outcome.
type Action struct {
	Rule          Rule
	Reduction     int
	NewCount      int
	CooldownUntil time.Time
}

// ThresholdManager owns the rule list plus the runtime cooldown map and
// per-direction counters. The runtime state is in-memory only: a restart
// clears cooldowns and counters, which is accepted as best-effort.
type ThresholdManager struct {
	rules     []Rule
	cooldowns map[int]time.Time // rule index -> expiry
	counters  map[market.Direction]int
}

func NewThresholdManager(rules []Rule) *ThresholdManager {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MaxOrderCount < sorted[j].MaxOrderCount
	})
	return &ThresholdManager{
		rules:     sorted,
		cooldowns: make(map[int]time.Time),
		counters:  make(map[market.Direction]int),
	}
}

func (m *ThresholdManager) appliesTo(r Rule, dir market.Direction) bool {
	switch r.AppliesTo {
	case "both":
		return true
	case "buy":
		return dir == market.Buy
	case "sell":
		return dir == market.Sell
	}
	return false
}

// Check runs every matching rule against the current order count. Rules in
// cooldown are skipped; expired cooldowns are cleared on the way through.
func (m *ThresholdManager) Check(dir market.Direction, currentCount int, now time.Time) []Action {
	var actions []Action
	for i, r := range m.rules {
		if !m.appliesTo(r, dir) {
			continue
		}
		if expiry, ok := m.cooldowns[i]; ok {
			if now.Before(expiry) {
				continue
			}
			delete(m.cooldowns, i)
		}
		if currentCount < r.MaxOrderCount {
			continue
		}

		reduction := r.DecreaseAmount
		if reduction > currentCount {
			reduction = currentCount
		}
		until := now.Add(time.Duration(r.CooldownMinutes) * time.Minute)
		m.cooldowns[i] = until
		actions = append(actions, Action{
			Rule:          r,
			Reduction:     reduction,
			NewCount:      currentCount - reduction,
			CooldownUntil: until,
		})
		if r.ResetCounterOnTrigger {
			m.counters[dir] = 0
		}
	}
	return actions
}

// CountOrder bumps the per-direction order counter.
func (m *ThresholdManager) CountOrder(dir market.Direction) {
	m.counters[dir]++
}

func (m *ThresholdManager) Counter(dir market.Direction) int {
	return m.counters[dir]
}
