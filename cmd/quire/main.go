// Command quire is a headless host for the quire notebook core: it loads
// notebook files, prints them, and runs their input cells against a compute
// kernel, all through the action pipeline.
package main

func main() {
	Execute()
}
