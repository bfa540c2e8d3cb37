package main

import "github.com/kiiskristo/howdoyoufindme/internal/cli"

func main() {
	cli.Execute()
}
