package main

import "github.com/aegisalert/aegis/cmd"

func main() {
	cmd.Execute()
}
