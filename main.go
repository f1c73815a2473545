package main

import "github.com/jetstack/securelink/cmd"

func main() {
	cmd.Execute()
}
