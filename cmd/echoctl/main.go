// Command echoctl runs the TCP and UDP echo servers and clients.
package main

func main() {
	Execute()
}
