package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"labcore/internal/core"
	"labcore/pkg/domain"
)

func TestLoadExampleCatalog(t *testing.T) {
	cat, err := Load("testdata/catalog.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cat.Tests) != 3 || len(cat.Clients) != 1 {
		t.Fatalf("unexpected catalog %+v", cat)
	}
	water := cat.Tests[0].AgroTest()
	if water.Kind != domain.KindWater || len(water.Parameters) != 2 {
		t.Fatalf("unexpected water test %+v", water)
	}
	alkaline := water.Parameters[0].Rules[1]
	if alkaline.Kind != domain.RuleGreaterThan || alkaline.Max != nil || *alkaline.Min != 8.5 || alkaline.Priority != 1 {
		t.Fatalf("unexpected rule %+v", alkaline)
	}
	if got := cat.Tests[1].Parameters[0].Rules[1].Category; got != domain.CategoryWetland {
		t.Fatalf("expected wetland category, got %q", got)
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"unknown field": "tests:\n  - code: X\n    minimum: 3\n",
		"bad type":      "tests: 3\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(doc)); err == nil {
				t.Fatalf("expected error for %q", doc)
			}
		})
	}
	empty, err := Parse(strings.NewReader(""))
	if err != nil || len(empty.Tests) != 0 {
		t.Fatalf("expected empty catalog, got %+v %v", empty, err)
	}
	if _, err := Load("testdata/missing.yaml"); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestImportRegistersAndSkipsKnownCodes(t *testing.T) {
	ctx := context.Background()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	cat, err := Load("testdata/catalog.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	first, err := Import(ctx, svc, cat)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(first.Tests) != 3 || len(first.Skipped) != 0 || len(first.Clients) != 1 {
		t.Fatalf("unexpected first import %+v", first)
	}
	stored, err := svc.GetAgroTest(ctx, "F-N")
	if err != nil || stored.ID != first.Tests[2].ID {
		t.Fatalf("lookup by code: %+v %v", stored, err)
	}

	second, err := Import(ctx, svc, &Catalog{Tests: cat.Tests})
	if err != nil {
		t.Fatalf("reimport: %v", err)
	}
	if len(second.Tests) != 0 || strings.Join(second.Skipped, ",") != "W-BASIC,S-NPK,F-N" {
		t.Fatalf("expected every test skipped, got %+v", second)
	}
}

func TestImportStopsOnInvalidTest(t *testing.T) {
	svc := core.NewInMemoryService(nil)
	cat := &Catalog{Tests: []Test{
		{Code: "OK", Kind: domain.KindWater, Parameters: []Parameter{{Name: "pH"}}},
		{Code: "BAD", Kind: "AIR", Parameters: []Parameter{{Name: "pH"}}},
	}}
	sum, err := Import(context.Background(), svc, cat)
	var ve *core.ValidationError
	if err == nil || !errors.As(err, &ve) || ve.Field != "kind" {
		t.Fatalf("expected kind validation error, got %v", err)
	}
	if len(sum.Tests) != 1 {
		t.Fatalf("expected the first test registered, got %+v", sum)
	}
}
