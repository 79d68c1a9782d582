/*
Package steward is a small declarative desired-state and audit engine for a
single host.

It does two independent things:

  - Converge drives a host to a declared state: packages installed, services
    running or enabled, files with given content and ownership. Declarations
    are applied in order, idempotently, and the run stops at the first
    failure.
  - Audit evaluates named controls made of boolean assertions against the
    host and reports pass/fail per assertion. Every assertion is evaluated;
    a failing control is report data, not an error.

Both act on a ports.HostFactProvider. The system adapter talks to a
Debian/systemd machine; the memory adapter simulates one.

# Usage

	doc, err := steward.LoadDocument(ctx, "webserver.yaml")
	if err != nil {
		log.Fatal(err)
	}

	eng, err := steward.New(system.New(system.NewRunner(nil)))
	if err != nil {
		log.Fatal(err)
	}

	report, err := eng.Converge(ctx, doc.Resources)
	var applyErr *domain.ResourceApplyError
	if errors.As(err, &applyErr) {
		log.Printf("%s[%s] failed", applyErr.Kind, applyErr.Identity)
	}

	run, _ := eng.Audit(ctx, doc.ControlGroups)
	fmt.Println(run.Passed())

Runs can be persisted with WithStore (memory, file and Redis stores live
under pkg/adapters) and serialized across processes with WithLocker.
*/
package steward
