// Command playkuctl inspects storefront pages the way the PlayKu storefront
// runtime sees them.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
