package main

import "compress-service/app"

func main() {
	app.Run()
}
