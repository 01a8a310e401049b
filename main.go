package main

import "github.com/moumouls/aero-4g-cam/pkg/cli"

func main() {
	cli.Execute()
}
