package main

import "remcon/server"

func main() {
	server.Main()
}
