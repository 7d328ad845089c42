// Command openapi-run executes a file of Baidu OpenAPI calls and prints the
// results as JSON.
//
//	openapi-run --calls calls.json [--batch] [--serial] [--concurrency 4] [--journal] [--metrics-out path]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
