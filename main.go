package main

import "gmat-zalo-bot/internal/app"

func main() {
	app.Main()
}
