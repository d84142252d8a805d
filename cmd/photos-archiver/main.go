package main

import (
	"go-photos-archiver/cmd/photos-archiver/cmd"
)

func main() {
	cmd.Execute()
}
