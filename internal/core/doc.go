// Package core provides the business logic for ShotGrid-to-OMC conversion.
//
// This package is the heart of the converter, containing all domain logic
// independent of any UI or transport layer. It can be used by web handlers,
// CLI tools, or tests without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Row Pipeline: [ParseSource] locates the task table in a ShotGrid CSV
//     export and [TransformRow] turns each row into one OMC Task entity.
//   - Mappings: Two closed lookup tables translate ShotGrid status codes to
//     lifecycle states and pipeline steps to functional categories.
//   - Service: The main entry point for all operations (convert, verify,
//     history, audit).
//   - History: Finished runs are persisted to PostgreSQL so documents and
//     verification outcomes survive restarts.
//
// # Conversion Runs
//
// Conversions run asynchronously with a bounded number of parallel runs.
// The flow is:
//
//  1. Client calls [Service.StartConversion] with an io.Reader
//  2. Service wraps the reader with BOM skipping and UTF-8 sanitization
//  3. Rows with a usable id become entities; rows without one are skipped
//  4. The entity sequence is encoded as one ordered JSON document
//  5. Progress is broadcast to subscribers via [Service.SubscribeProgress]
//
// Repeated conversion of the same input yields byte-identical output.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - CSV001-CSV005: Source file errors (parse failures, missing header, size)
//   - CNV001-CNV008: Conversion errors (cancelled, timeout, not found, export)
//   - VER001-VER004: Verification errors (checker unreachable, bad report)
//   - DB001-DB005: Database errors (connection, constraints)
//
// # Audit Logging
//
// Conversions, cancellations, exports, and verification requests are recorded
// in the audit log together with the client address that triggered them. Old
// runs and audit entries are purged on a schedule based on the configured
// retention policy.
package core
