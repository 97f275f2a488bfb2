package domain

import (
	"testing"

	"standsim/testutil"
)

// TestDomainDoesNotImportInternal keeps the record layer free of simulator
// internals so plugins can depend on it alone.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain must not import internal packages")
}
