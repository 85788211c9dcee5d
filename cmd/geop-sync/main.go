package main

import "github.com/pfrederiksen/geop-sync/internal/cli"

func main() {
	cli.Execute()
}
