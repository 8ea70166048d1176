// Command screenkit inspects and maintains screenkit Allure results.
package main

import "github.com/devicelab-dev/screenkit/pkg/cli"

func main() {
	cli.Execute()
}
