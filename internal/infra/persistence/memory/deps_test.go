package memory

import (
	"testing"

	"labcore/testutil"
)

func TestImportsAreDomainOrStdlib(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.ModuleImportsExcept("labcore", "labcore/pkg/domain"),
		"the memory store only knows the domain")
}
