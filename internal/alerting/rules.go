// Package alerting loads threshold rules from a YAML file and
// evaluates them against incoming readings.
package alerting

import (
	"fmt"
	"os"
	"strings"

	"github.com/fieldwatch/sensor-gateway/pkg/log"
	"gopkg.in/yaml.v3"
)

// Rule is one threshold rule: when NodeID's Field exceeds Threshold,
// Message is rendered and raised as an alert.
type Rule struct {
	NodeID         uint16  `yaml:"node_id"`
	FieldToMonitor string  `yaml:"field_to_monitor"`
	Threshold      float64 `yaml:"threshold"`
	AlertMessage   string  `yaml:"alert_message"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules parses the YAML rule file at path.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("alerting: reading rule file %s: %w", path, err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("alerting: parsing rule file %s: %w", path, err)
	}

	log.Infof("alerting: loaded %d rule(s) from %s", len(rf.Rules), path)
	return rf.Rules, nil
}

// Evaluator holds an immutable rule set and checks readings against it.
type Evaluator struct {
	rules []Rule
}

// NewEvaluator returns an Evaluator over rules. The rule set is never
// mutated after construction.
func NewEvaluator(rules []Rule) *Evaluator {
	return &Evaluator{rules: rules}
}

// Evaluate checks every rule whose node id matches nodeID against the
// supplied fields, using strict greater-than, and returns the rendered
// alert message for each rule that fires.
func (e *Evaluator) Evaluate(nodeID uint16, fields map[string]float64) []string {
	var alerts []string
	for _, rule := range e.rules {
		if rule.NodeID != nodeID {
			continue
		}
		value, ok := fields[rule.FieldToMonitor]
		if !ok {
			continue
		}
		if value > rule.Threshold {
			alerts = append(alerts, render(rule, value))
		}
	}
	return alerts
}

func render(rule Rule, value float64) string {
	msg := rule.AlertMessage
	msg = strings.ReplaceAll(msg, "{node}", fmt.Sprintf("%d", rule.NodeID))
	msg = strings.ReplaceAll(msg, "{value}", formatNumber(value))
	msg = strings.ReplaceAll(msg, "{threshold}", formatNumber(rule.Threshold))
	return msg
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
