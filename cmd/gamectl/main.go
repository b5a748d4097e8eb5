package main

import "github.com/rogerbap/gaminglibrary/internal/cli"

func main() {
	cli.Execute()
}
