package main

import "github.com/thingsql/thingsql/cmd"

func main() {
	cmd.Execute()
}
