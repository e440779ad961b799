// Package structure holds values deserialized against a schema.
//
// A Structure keeps one entry per declared property, in declaration order.
// Optional properties that were not provided hold the Absent marker instead of
// a zero value, so validators can tell "not provided" from "provided as empty".
//
// Scalar values are represented as string, int64, float64 or bool; enums as
// string; arrays as []any; nested objects as *Structure.
package structure
