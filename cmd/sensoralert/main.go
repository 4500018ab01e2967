package main

import "github.com/hamed0406/sensoralert/cmd/sensoralert/cmd"

func main() {
	cmd.Execute()
}
