// Command poolctl inspects and soak-tests fixed-capacity pools.
package main

func main() {
	execute()
}
