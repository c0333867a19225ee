package main

import (
	"fmt"
	"os"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
