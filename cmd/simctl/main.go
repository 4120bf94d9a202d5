// Command simctl is the operator CLI: batch backfill, ad-hoc scans, and
// config validation, for operations that don't belong behind HTTP.
package main

import "github.com/templateguard/simengine/cmd/simctl/cmd"

func main() {
	cmd.Execute()
}
