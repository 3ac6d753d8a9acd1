package main

import (
	"os"

	ctxmemcmder "github.com/papercomputeco/ctxmem/cmd/ctxmem"
)

func main() {
	cmd := ctxmemcmder.NewCtxmemCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
