package core

import (
	"testing"

	"labcore/testutil"
)

func TestCoreDoesNotDependOnAdapters(t *testing.T) {
	testutil.AssertNoTransitiveDependency(t, ".", testutil.ImportPrefixForbidden(
		"labcore/internal/api",
		"labcore/internal/cli",
		"labcore/internal/config",
		"labcore/internal/logging",
		"labcore/internal/archive",
		"labcore/internal/catalog",
	), "core is wired by adapters, never the reverse")
}
