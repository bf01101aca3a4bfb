package main

import "github.com/goplus/partcraft/cmd/partcraft/internal"

func main() {
	internal.Execute()
}
