package main

import (
	"github.com/rustyeddy/daytrader/internal/cli"
)

func main() {
	cli.Execute()
}
