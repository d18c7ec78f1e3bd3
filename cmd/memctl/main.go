// Command memctl creates and manipulates persisted physical memory images:
// it allocates frames and heap blocks, builds Sv39 page tables and reports
// what is in use.
package main

func main() {
	execute()
}
