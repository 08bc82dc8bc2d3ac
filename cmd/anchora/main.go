// The anchora command runs the grounded document QA server.
package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/kart-io/anchora/cmd/anchora/app"
)

func main() {
	app.NewApp().Run()
}
