package domain_test

import (
	"testing"

	"labcore/testutil"
)

// TestDomainDoesNotImportInternal keeps the domain layer free of
// implementation packages so stores and adapters can depend on it, never the
// other way around.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain must not depend on internal packages")
}

// TestDomainHasNoThirdPartyImports restricts the domain package to the
// standard library.
func TestDomainHasNoThirdPartyImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.ThirdPartyImport, "domain must stay on the standard library")
}
