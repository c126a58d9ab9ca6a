package main

import "snowpilot/cmd"

func main() {
	cmd.Execute()
}
