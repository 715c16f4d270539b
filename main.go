package main

import "github.com/shopnest/cart/cmd"

func main() {
	cmd.Start()
}
