package main

import "github.com/davarch/pipedash/cmd/pipedash/cli"

func main() {
	cli.Execute()
}
