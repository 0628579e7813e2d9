// Package operation defines the validated operation tree consumed by the
// query compiler: read and write operations, the filter expression tree,
// and the nested-write argument tree.
//
// Values in this package are produced by an upstream request handler that
// has already validated the request against the schema. The compiler trusts
// them structurally and does not re-validate filters.
package operation
