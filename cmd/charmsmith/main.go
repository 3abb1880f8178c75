// Command charmsmith composes charm jewelry designs from the command line.
package main

import "github.com/mesh-intelligence/charmsmith/internal/cli"

func main() {
	cli.Execute()
}
