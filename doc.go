// Package freshet is the operator layer of a distributed event-stream
// query engine.  A declarative, tree-shaped query description is compiled
// into an executable push-based pipeline that runs either on a single node
// or split across partitions with a merge step.
//
// The compiler package models and parses query descriptors, the runtime
// package builds pipelines from them, and the runtime/op packages hold the
// operator implementations.  The stream package provides the push-based
// substrate the operators are built on, and the stats package the numeric
// windowing engine.
package freshet
