package main

import "civicpulse/internal/app"

func main() {
	app.Main()
}
