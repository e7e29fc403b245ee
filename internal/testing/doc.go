// Package testing provides fakes, builders and fixtures shared by the
// orchestration and handler tests.
//
//   - SpecBuilder: fluent builder for cluster specs rooted in a temp dir
//   - FakeProvisioner, FakeLocator, FakeDialer: recording collaborators
//   - MockBucketProber: testify mock of the backup bucket probe
//   - ScriptedPrompter: answers confirmations from a fixed script
//   - CallLog: one ordered log shared by all fakes of a scenario
//
// Usage:
//
//	log := &testing.CallLog{}
//	spec := testing.NewSpecBuilder(t).WithShape(3, 2).Build()
//	remote := testing.NewFakeRemote(log)
//	dialer := &testing.FakeDialer{Remote: remote, Log: log}
package testing
