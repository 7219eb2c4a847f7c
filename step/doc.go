// Package step defines the unit of work of a vaultflow pipeline and the
// state that flows between units.
//
// A Step receives resolved parameters and the current run Context and
// returns a mapping that the runner merges into the Context. Parameters are
// literals or references: a string starting with "@" names a dotted path into
// the Context ("@filters.source") and is resolved just before the step runs.
//
// Steps live in a Registry that is populated explicitly at startup:
//
//	reg := step.NewRegistry()
//	if err := reg.Register(step.New("echo", echo)); err != nil {
//		return err
//	}
//	s, ok := reg.Lookup("echo")
package step
