/*
Package domain contains the core value types of the Steward engine.

It defines the declared desired state of a host, the compliance controls that
verify it, and the reports produced by a run. This package is kept pure and
free of external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - Resource: a declared piece of host state (Package, Service or File).
  - ControlGroup / Control / Assertion: named compliance checks.
  - ConvergenceReport: per-declaration outcome of a convergence run.
  - AuditReport: per-control outcome of an audit run.
  - HostAccessError, ResourceApplyError, ConfigParseError: the error taxonomy.
*/
package domain
