// provisionerctl creates and deletes H2O instances through the provisioner API.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
