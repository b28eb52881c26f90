// Command xrtipc-ctl inspects and steers a running xrtipc-server.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
