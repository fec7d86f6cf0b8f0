/*
Package factory provides JSON/YAML to Go routing table conversion.

PURPOSE:
  Converts routing definitions into a payroll.RoutingTable. This lets the
  house change which roles tip out on which categories, or the two global
  rates, without a code change.

SCHEMA (JSON shown; YAML uses the same keys):
  {
    "percentages": {"kitchen": "0.03", "bartender": "0.05"},
    "rules": [
      {"category": "Liquor", "from": ["Server"], "to": ["Bartender"]},
      {"category": "Dogs",   "from": ["Server", "Bartender"], "to": ["Kitchen"]},
      {"category": "Beverage", "from": [""], "to": [""]}
    ]
  }

  Role lists containing only empty strings mean "no transfer", matching the
  way the legacy routing sheet wrote non-tipping categories. Missing
  percentages fall back to the factory defaults (payroll.DefaultPercentages
  unless WithDefaults says otherwise).

USAGE:
  f := NewRoutingFactory().WithDefaults(cfg.Payroll.Percentages)
  table, err := f.Load("routing.yaml")

SEE ALSO:
  - payroll/routing.go: RoutingRule and RoutingTable
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Astoria-Consulting/mad-dogs/payroll"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// RoutingJSON is the file representation of a routing table.
type RoutingJSON struct {
	Percentages *PercentagesJSON `json:"percentages,omitempty" yaml:"percentages,omitempty"`
	Rules       []RuleJSON       `json:"rules" yaml:"rules"`
}

// PercentagesJSON holds the rates as decimal strings ("0.03").
type PercentagesJSON struct {
	Kitchen   string `json:"kitchen,omitempty" yaml:"kitchen,omitempty"`
	Bartender string `json:"bartender,omitempty" yaml:"bartender,omitempty"`
}

// RuleJSON is one category rule.
type RuleJSON struct {
	Category string   `json:"category" yaml:"category"`
	From     []string `json:"from,omitempty" yaml:"from,omitempty"`
	To       []string `json:"to,omitempty" yaml:"to,omitempty"`
}

// =============================================================================
// ROUTING FACTORY
// =============================================================================

// RoutingFactory converts routing definitions to payroll tables.
type RoutingFactory struct {
	defaults payroll.Percentages
}

// NewRoutingFactory creates a new routing factory.
func NewRoutingFactory() *RoutingFactory {
	return &RoutingFactory{defaults: payroll.DefaultPercentages()}
}

// WithDefaults sets the rates used when a definition omits them.
func (f *RoutingFactory) WithDefaults(pct payroll.Percentages) *RoutingFactory {
	f.defaults = pct
	return f
}

// Load returns the table defined in path, or the house routing at the
// default rates when path is empty.
func (f *RoutingFactory) Load(path string) (*payroll.RoutingTable, error) {
	if path == "" {
		return payroll.NewRoutingTable(payroll.DefaultRoutingRules(), f.defaults)
	}
	return f.LoadFile(path)
}

// LoadFile reads a routing file. ".yaml" and ".yml" are parsed as YAML,
// anything else as JSON.
func (f *RoutingFactory) LoadFile(path string) (*payroll.RoutingTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routing file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return f.ParseYAML(data)
	default:
		return f.ParseJSON(data)
	}
}

// ParseJSON parses a JSON routing definition.
func (f *RoutingFactory) ParseJSON(data []byte) (*payroll.RoutingTable, error) {
	var rj RoutingJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return nil, fmt.Errorf("failed to parse routing JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// ParseYAML parses a YAML routing definition.
func (f *RoutingFactory) ParseYAML(data []byte) (*payroll.RoutingTable, error) {
	var rj RoutingJSON
	if err := yaml.Unmarshal(data, &rj); err != nil {
		return nil, fmt.Errorf("failed to parse routing YAML: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts the schema into a validated RoutingTable.
func (f *RoutingFactory) FromJSON(rj RoutingJSON) (*payroll.RoutingTable, error) {
	pct, err := parsePercentages(rj.Percentages, f.defaults)
	if err != nil {
		return nil, err
	}

	rules := make([]payroll.RoutingRule, 0, len(rj.Rules))
	for _, r := range rj.Rules {
		from, err := parseRoles(r.From)
		if err != nil {
			return nil, fmt.Errorf("category %q: from: %w", r.Category, err)
		}
		to, err := parseRoles(r.To)
		if err != nil {
			return nil, fmt.Errorf("category %q: to: %w", r.Category, err)
		}
		rules = append(rules, payroll.RoutingRule{
			Category: strings.TrimSpace(r.Category),
			From:     from,
			To:       to,
		})
	}
	return payroll.NewRoutingTable(rules, pct)
}

// ToJSON converts rules and rates back into the file schema.
func (f *RoutingFactory) ToJSON(rules []payroll.RoutingRule, pct payroll.Percentages) RoutingJSON {
	rj := RoutingJSON{
		Percentages: &PercentagesJSON{
			Kitchen:   pct.Kitchen.String(),
			Bartender: pct.Bartender.String(),
		},
	}
	for _, r := range rules {
		rj.Rules = append(rj.Rules, RuleJSON{
			Category: r.Category,
			From:     roleNames(r.From),
			To:       roleNames(r.To),
		})
	}
	return rj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parsePercentages(pj *PercentagesJSON, base payroll.Percentages) (payroll.Percentages, error) {
	pct := base
	if pj == nil {
		return pct, nil
	}
	if pj.Kitchen != "" {
		v, err := decimal.NewFromString(pj.Kitchen)
		if err != nil {
			return pct, fmt.Errorf("%w: kitchen %q", payroll.ErrInvalidPercentage, pj.Kitchen)
		}
		pct.Kitchen = v
	}
	if pj.Bartender != "" {
		v, err := decimal.NewFromString(pj.Bartender)
		if err != nil {
			return pct, fmt.Errorf("%w: bartender %q", payroll.ErrInvalidPercentage, pj.Bartender)
		}
		pct.Bartender = v
	}
	return pct, pct.Validate()
}

// parseRoles drops blank names; a list of only blanks yields no roles.
func parseRoles(names []string) ([]payroll.Role, error) {
	var roles []payroll.Role
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		role, err := payroll.ParseRole(name)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func roleNames(roles []payroll.Role) []string {
	if len(roles) == 0 {
		return nil
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.String()
	}
	return names
}
