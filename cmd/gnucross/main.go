package main

import "gnucross/internal/gnucross"

func main() {
	gnucross.Main()
}
