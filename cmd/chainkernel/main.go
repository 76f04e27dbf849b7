// chainkernel runs a permission kernel node and talks to one.
package main

import "github.com/ppiankov/chainkernel/internal/cli"

func main() {
	cli.Execute()
}
