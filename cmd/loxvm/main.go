package main

import "github.com/funvibe/loxvm/pkg/cli"

func main() {
	cli.Run()
}
