package main

import "github.com/mcoot/duelsync-go/internal/cli"

func main() {
	cli.Execute()
}
