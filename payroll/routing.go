package payroll

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROUTING RULES - Which roles fund and receive tip-out per category
// =============================================================================

// RoutingRule routes a category's tip-out from the From roles to the To roles.
// An empty role list on either side means the category never transfers.
type RoutingRule struct {
	Category   string
	From       []Role
	To         []Role
	Percentage decimal.Decimal
}

// Transfers reports whether the rule can move money at all.
func (r RoutingRule) Transfers() bool {
	return len(r.From) > 0 && len(r.To) > 0 && r.Percentage.IsPositive()
}

// Percentages holds the two global tip-out rates, keyed by receiving role.
type Percentages struct {
	Kitchen   decimal.Decimal
	Bartender decimal.Decimal
}

// DefaultPercentages are the house rates: 3% to the kitchen, 5% to the bar.
func DefaultPercentages() Percentages {
	return Percentages{
		Kitchen:   decimal.RequireFromString("0.03"),
		Bartender: decimal.RequireFromString("0.05"),
	}
}

// Validate checks both rates are within [0, 1].
func (p Percentages) Validate() error {
	one := decimal.NewFromInt(1)
	for name, v := range map[string]decimal.Decimal{"kitchen": p.Kitchen, "bartender": p.Bartender} {
		if v.IsNegative() || v.GreaterThan(one) {
			return fmt.Errorf("%w: %s=%s", ErrInvalidPercentage, name, v)
		}
	}
	return nil
}

// For returns the rate paid to a receiving role. Only the kitchen and the bar
// are paid tip-out; every other role receives zero.
func (p Percentages) For(receiving Role) decimal.Decimal {
	switch receiving {
	case RoleKitchen:
		return p.Kitchen
	case RoleBartender:
		return p.Bartender
	default:
		return decimal.Zero
	}
}

// =============================================================================
// ROUTING TABLE
// =============================================================================

// RoutingTable is the immutable category -> rule lookup.
type RoutingTable struct {
	rules map[string]RoutingRule
}

// NewRoutingTable builds a table from rules. Each rule's Percentage is derived
// from its first receiving role; any value set on the input is ignored.
func NewRoutingTable(rules []RoutingRule, pct Percentages) (*RoutingTable, error) {
	if err := pct.Validate(); err != nil {
		return nil, err
	}
	t := &RoutingTable{rules: make(map[string]RoutingRule, len(rules))}
	for _, r := range rules {
		if r.Category == "" {
			return nil, fmt.Errorf("routing rule with empty category")
		}
		if _, dup := t.rules[r.Category]; dup {
			return nil, fmt.Errorf("duplicate routing rule for category %q", r.Category)
		}
		rule := RoutingRule{
			Category:   r.Category,
			From:       append([]Role(nil), r.From...),
			To:         append([]Role(nil), r.To...),
			Percentage: decimal.Zero,
		}
		if len(rule.To) > 0 {
			rule.Percentage = pct.For(rule.To[0])
		}
		t.rules[r.Category] = rule
	}
	return t, nil
}

// Resolve returns the rule for a category name.
func (t *RoutingTable) Resolve(category string) (RoutingRule, error) {
	rule, ok := t.rules[category]
	if !ok {
		return RoutingRule{}, &UnknownCategoryError{Category: category}
	}
	return rule, nil
}

// Categories returns the configured category names, sorted.
func (t *RoutingTable) Categories() []string {
	names := make([]string, 0, len(t.rules))
	for name := range t.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rules returns every rule, ordered by category.
func (t *RoutingTable) Rules() []RoutingRule {
	names := t.Categories()
	out := make([]RoutingRule, len(names))
	for i, name := range names {
		out[i] = t.rules[name]
	}
	return out
}

// DefaultRoutingRules is the house routing: drinks tip the bar out of the
// servers, food tips the kitchen out of servers and bartenders.
func DefaultRoutingRules() []RoutingRule {
	bar := func(category string) RoutingRule {
		return RoutingRule{Category: category, From: []Role{RoleServer}, To: []Role{RoleBartender}}
	}
	kitchen := func(category string) RoutingRule {
		return RoutingRule{Category: category, From: []Role{RoleServer, RoleBartender}, To: []Role{RoleKitchen}}
	}
	none := func(category string) RoutingRule {
		return RoutingRule{Category: category}
	}
	return []RoutingRule{
		none("Beverage"),
		bar("Liquor"),
		bar("Beer"),
		bar("Wine"),
		bar("Cocktails"),
		kitchen("Dogs"),
		kitchen("Bites"),
		kitchen("Dessert"),
		kitchen("Salad"),
		kitchen("Kids Meal/Sides/Salad"),
		kitchen("Brunch"),
		none("Merchandise"),
		none("Mora"),
	}
}
