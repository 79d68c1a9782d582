/*
Package ports defines the driven ports (interfaces) of the Steward engine.

These interfaces decouple the converger and the auditor from the host they act
upon and from wherever run reports end up.

# Key Interfaces

  - HostFactProvider: answers fact queries about a host and mutates it.
  - ReportStore: persists converge and audit run records.
  - HostLocker: serializes concurrent runs against one host.

The package also ships contract suites (RunReportStoreContract,
RunFactProviderContract) that every adapter runs in its own tests.
*/
package ports
