package main

import "github.com/h-mizumoto/Dynamic-Data-Upload/services/notify/cmd"

func main() {
	cmd.Execute()
}
