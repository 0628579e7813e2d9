// Package querygraph is a data-access engine that compiles a single
// high-level, possibly deeply nested, read or write operation into a
// directed acyclic graph of primitive database operations and executes the
// graph inside one transaction.
//
// The root package holds the domain error taxonomy shared by all
// sub-packages. The moving parts live below it:
//
//   - operation: the validated operation tree consumed by the compiler
//   - schema: model, field and relation metadata
//   - graph: the query graph structure, including the node flip rewrite
//   - compiler: the read and write graph builders
//   - interpreter: transactional graph execution
//   - connector: the primitive operation contract and its implementations
//   - serializer: nested payload reconstruction
//   - engine: the public facade tying the pieces together
package querygraph
