package main

import "github.com/smeshlabs/uploader-setup/cmd/uploader-setup/cmd"

func main() {
	cmd.Execute()
}
