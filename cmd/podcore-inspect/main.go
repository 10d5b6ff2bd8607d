// Command podcore-inspect pretty-prints a persisted pod-state blob for
// offline debugging: address, setup progress, suspend state, fault record,
// activation/expiry times, and the dose ledger, in table, JSON, or YAML
// form. The nonce table is not printed.
package main

import (
	"os"

	"github.com/kaylen-rios/podcomms/cmd/podcore-inspect/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
