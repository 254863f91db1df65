// The hostbridge command runs demonstration scenarios against a virtual
// board, mainly for trying the monitoring server and the request recorder
// without writing an embedding environment.
package main

func main() {
	Execute()
}
