package main

import "github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/cmd"

func main() {
	cmd.Execute()
}
