// Package types defines the geometry primitives, entity types, configuration,
// persistence interface, and standard error types for the charmsmith
// composition core.
//
// Charms are placed on a stage in design-space units. Positions are top-left
// coordinates; every rectangle in this package shares that convention.
package types
