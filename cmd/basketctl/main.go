package main

import "basket-service/cmd/basketctl/cmd"

func main() {
	cmd.Execute()
}
