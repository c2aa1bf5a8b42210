package entities

import "time"

// ActionDefinition is an immutable catalog entry describing how one action
// kind is rewarded and throttled. Zero Cooldown/DailyCap means the action
// carries no throttling policy.
type ActionDefinition struct {
	ID         string
	BaseAmount int64
	Cooldown   time.Duration
	DailyCap   int
}

// Throttled reports whether the action carries any cooldown or cap policy.
func (a ActionDefinition) Throttled() bool {
	return a.Cooldown > 0 || a.DailyCap > 0
}

// ActionCatalog is the read-only action table loaded at process start.
type ActionCatalog struct {
	actions map[string]ActionDefinition
}

func NewActionCatalog(definitions []ActionDefinition) ActionCatalog {
	actions := make(map[string]ActionDefinition, len(definitions))
	for _, def := range definitions {
		actions[def.ID] = def
	}
	return ActionCatalog{actions: actions}
}

func (c ActionCatalog) Lookup(actionID string) (ActionDefinition, bool) {
	def, ok := c.actions[actionID]
	return def, ok
}

func (c ActionCatalog) Len() int {
	return len(c.actions)
}

// DefaultActions is the built-in catalog used by the developer bootstrap
// path and tests. Production deployments override it from configuration.
func DefaultActions() []ActionDefinition {
	return []ActionDefinition{
		{ID: "first_trade", BaseAmount: 100},
		{ID: "trade_executed", BaseAmount: 10, Cooldown: time.Minute, DailyCap: 50},
		{ID: "daily_login", BaseAmount: 20, Cooldown: 20 * time.Hour, DailyCap: 1},
		{ID: "achievement_unlocked", BaseAmount: 50},
		{ID: "weekly_podium", BaseAmount: 200},
		{ID: "monthly_podium", BaseAmount: 500},
	}
}
