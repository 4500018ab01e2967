package main

import "github.com/hamed0406/sensoralert/cmd/alertctl/cmd"

func main() {
	cmd.Execute()
}
