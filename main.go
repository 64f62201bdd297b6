package main

import "github.com/denysvitali/rclone-api-go/cmd"

func main() {
	cmd.Execute()
}
