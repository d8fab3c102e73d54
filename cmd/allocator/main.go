package main

import "github.com/rustyeddy/allocator/cmd/allocator/cmd"

func main() {
	cmd.Execute()
}
