// Package ir provides the canonical intermediate representation for procflow:
// field values, process graphs, generated records and execution reports.
//
// This package contains type definitions and their serialization only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - numbers are exact decimals (IRNumber)
//   - All JSON tags use snake_case
//   - Record identity is content-addressed from the origin key (node, root entity)
//   - Canvas positions travel with nodes but never reach evaluation
package ir
