// Package testutil provides node fixtures for executor and scenario
// tests: nodes that count their lifecycle calls, fail on demand, or
// record the instants they were updated.
package testutil
