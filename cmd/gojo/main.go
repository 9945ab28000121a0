// Command gojo runs INC/IMP/SUC command files against a partially
// persistent red-black tree.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
