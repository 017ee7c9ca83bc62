package main

import (
	"context"
	"fmt"
	"os"

	"legalmind/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "legalmind: %v\n", err)
		os.Exit(1)
	}
}
