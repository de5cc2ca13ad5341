// Package core provides the business logic for table export workflows.
//
// This package is the heart of the exporter, containing all domain logic
// independent of any UI or transport layer. It is used by the HTTP API, the
// CLI, and tests without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Catalog: table and stored-procedure definitions, loaded once at startup.
//   - Tracker: one correlation context per top-level operation.
//   - Writer: writes one result set to xlsx, csv, or tab-delimited txt.
//   - Validator: pre-flight row-count check against the spreadsheet ceiling.
//   - Coordinator: exports a list of tables sequentially with partial-success
//     semantics.
//   - Orchestrator: runs a procedure, then exports the tables it populated.
//
// # Workflow
//
//  1. Caller picks a procedure, two period tokens, tables, and a format
//  2. [Orchestrator.RunWorkflow] binds the tokens and executes the procedure
//  3. On success, [Coordinator.ExportAll] validates, then queries and writes
//     each table in order, releasing each result set after its write
//  4. Outcomes are aggregated into a [WorkflowOutcome]
//
// # Cancellation
//
// Cancellation is cooperative through context.Context. It is observed at
// batch start, before each table query, every [CancelCheckInterval] rows of a
// delimited write, and between the phases of a spreadsheet write.
//
// # Error Handling
//
// Pre-flight and execution failures are returned as [*ValidationError] and
// [*ExecutionError]. Single-table failures are contained in the outcome list.
// Cancellation is returned as [*CancelledError], which matches [ErrCancelled].
// [MapError] turns any of these into a coded user message.
package core
