package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestInventoryAlertRules(t *testing.T) {
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "inventory.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read alert file: %v", err)
	}

	var spec alertSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		t.Fatalf("failed to unmarshal alert file: %v", err)
	}

	var group *alertGroup
	for i := range spec.Groups {
		if spec.Groups[i].Name == "inventory" {
			group = &spec.Groups[i]
			break
		}
	}
	if group == nil {
		t.Fatal("expected an inventory alert group")
	}
	if len(group.Rules) == 0 {
		t.Fatal("expected at least one inventory alert rule")
	}
	for _, rule := range group.Rules {
		if rule.Alert == "" || rule.Expr == "" {
			t.Fatalf("rule missing alert name or expr: %+v", rule)
		}
		if !strings.Contains(rule.Expr, "stockledger_") {
			t.Fatalf("rule %s does not reference an engine metric: %s", rule.Alert, rule.Expr)
		}
		if rule.Labels["severity"] == "" {
			t.Fatalf("rule %s missing severity label", rule.Alert)
		}
	}
}
