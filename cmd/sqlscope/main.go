// Package main is the entry point for the sqlscope CLI.
package main

import "github.com/leapstack-labs/sqlscope/internal/cli"

func main() {
	cli.Execute()
}
