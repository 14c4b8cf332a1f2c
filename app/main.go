// Файл: main.go

package main

import "business-api/cmd"

func main() {
	cmd.Execute()
}
