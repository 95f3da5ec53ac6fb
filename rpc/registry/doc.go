// Package registry holds the name-indexed table of invocable operations
// (tools) and named resources the dispatcher resolves against. The table
// is populated by explicit Register calls from an initialization routine
// at process start and is treated as read-only afterwards, so lookups are
// lock-free.
//
// Each entry declares its parameters by name, type tag and required flag.
// The package also provides the deterministic, reversible casing transform
// between the wire convention (snake_case) and the handler convention
// (camelCase), plus JSON type coercion for declared parameter types.
package registry
