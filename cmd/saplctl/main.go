// Command saplctl is an offline, decide-once demonstration of the sapl
// library: it loads a small set of fixture policies and a subscription from
// disk, runs a single DecideOnce, and prints the resulting
// AuthorizationDecision as JSON. It is not a server and speaks no wire
// protocol; a caller wanting a live decision stream embeds the sapl package
// directly.
package main

import "github.com/sapl-go/sapl/cmd/saplctl/cmd"

func main() {
	cmd.Execute()
}
