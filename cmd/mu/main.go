package main

import "github.com/0ximu/mu/internal/cli"

func main() {
	cli.Execute()
}
