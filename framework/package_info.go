// Package framework contains the generic test-context machinery used by the
// acceptance suite.
//
// A Context is similar to Go's *testing.T: pieces of test logic are associated with a
// test identifier and accumulate success/failure results, subtests are created with
// Run, and Context implements require.TestingT so that the usual testify assertions
// can be used. The code that knows what is being tested builds a domain-specific API
// on top of Context, and a TestLogger reports progress as tests run.
package framework
