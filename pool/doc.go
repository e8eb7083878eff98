// Package pool computes per-well transfer volumes for combining sequencing
// libraries from a microtiter plate into a single pool.
//
// # Reading Guide
//
// Start with these files:
//   - allocator.go: the Allocator interface, Allocation result and NewAllocator factory
//   - equal_molar.go: threshold/floor equal-molar pooling, the default policy
//   - estimate.go: realized pool concentration and volume
//   - bundle.go: YAML policy configuration and validation
//
// # Architecture
//
// The pool package holds the volume allocators and the pool estimator; supporting
// pieces live in sub-packages:
//   - pool/plate/: well labels, plate shapes, unit-tagged matrices
//   - pool/convert/: qPCR and fluorometric concentration converters
//   - pool/reads/: read-count normalization and read-depth projection
//   - pool/picklist/: liquid-handler transfer lists
//
// Every operation is a pure function of its inputs. Matrices are immutable and each
// allocator returns freshly built matrices, so one concentration matrix can feed
// several policies.
package pool
