package main

import "github.com/ametori/storefront/cmd"

func main() {
	cmd.Start()
}
