package main

import "raceform/internal/cli"

func main() {
	cli.Execute()
}
