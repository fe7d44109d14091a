package main

import "remcon/agent"

func main() {
	agent.Main()
}
