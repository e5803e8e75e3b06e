package main

import "github.com/appsworld/machdump/cmd/machdump/cmd"

func main() {
	cmd.Execute()
}
