// Package catalog loads agro test definitions and clients from YAML files and
// registers them with the service.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"labcore/internal/core"
	"labcore/pkg/domain"
)

// Rule mirrors a comparison rule in catalog files.
type Rule struct {
	Kind           domain.RuleKind     `yaml:"kind"`
	Min            *float64            `yaml:"min,omitempty"`
	Max            *float64            `yaml:"max,omitempty"`
	Interpretation string              `yaml:"interpretation"`
	Priority       int                 `yaml:"priority,omitempty"`
	Category       domain.SoilCategory `yaml:"category,omitempty"`
}

// Parameter is a measurable quantity with its rules.
type Parameter struct {
	Name  string `yaml:"name"`
	Unit  string `yaml:"unit,omitempty"`
	Rules []Rule `yaml:"rules,omitempty"`
}

// Test is one catalog entry.
type Test struct {
	Code       string            `yaml:"code"`
	Name       string            `yaml:"name"`
	Kind       domain.SampleKind `yaml:"kind"`
	Parameters []Parameter       `yaml:"parameters"`
}

// Client is a customer created alongside the catalog.
type Client struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email,omitempty"`
}

// Catalog is the root document of a catalog file.
type Catalog struct {
	Tests   []Test   `yaml:"tests"`
	Clients []Client `yaml:"clients,omitempty"`
}

// Load reads and parses the catalog file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a catalog document. Unknown fields are rejected so typos in
// rule bounds do not silently disable a rule.
func Parse(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var cat Catalog
	if err := dec.Decode(&cat); err != nil {
		if errors.Is(err, io.EOF) {
			return &cat, nil
		}
		return nil, fmt.Errorf("failed to unmarshal catalog YAML: %w", err)
	}
	return &cat, nil
}

// AgroTest converts the entry into the domain shape accepted by
// Service.RegisterAgroTest.
func (t Test) AgroTest() core.AgroTest {
	out := core.AgroTest{Code: t.Code, Name: t.Name, Kind: t.Kind}
	for _, p := range t.Parameters {
		param := core.TestParameter{Name: p.Name, Unit: p.Unit}
		for _, r := range p.Rules {
			param.Rules = append(param.Rules, core.ComparisonRule{
				Kind:           r.Kind,
				Min:            r.Min,
				Max:            r.Max,
				Interpretation: r.Interpretation,
				Priority:       r.Priority,
				Category:       r.Category,
			})
		}
		out.Parameters = append(out.Parameters, param)
	}
	return out
}

// Registrar is the subset of the service used by Import.
type Registrar interface {
	RegisterAgroTest(ctx context.Context, test core.AgroTest) (core.AgroTest, core.Result, error)
	GetAgroTest(ctx context.Context, ref string) (core.AgroTest, error)
	CreateClient(ctx context.Context, client core.Client) (core.Client, core.Result, error)
}

// Summary lists what an import created and skipped.
type Summary struct {
	Tests   []core.AgroTest
	Skipped []string
	Clients []core.Client
}

// Import registers every test whose code is not yet known and creates every
// client. It stops at the first failure; records created before it stay.
func Import(ctx context.Context, reg Registrar, cat *Catalog) (Summary, error) {
	var sum Summary
	for _, t := range cat.Tests {
		if _, err := reg.GetAgroTest(ctx, t.Code); err == nil {
			sum.Skipped = append(sum.Skipped, t.Code)
			continue
		} else if !domain.IsNotFound(err) {
			return sum, fmt.Errorf("lookup test %s: %w", t.Code, err)
		}
		created, _, err := reg.RegisterAgroTest(ctx, t.AgroTest())
		if err != nil {
			return sum, err
		}
		sum.Tests = append(sum.Tests, created)
	}
	for _, c := range cat.Clients {
		created, _, err := reg.CreateClient(ctx, core.Client{Name: c.Name, Email: c.Email})
		if err != nil {
			return sum, fmt.Errorf("client %s: %w", c.Name, err)
		}
		sum.Clients = append(sum.Clients, created)
	}
	return sum, nil
}
