// Package global is the bridge between the allocator backends and code
// that needs one process-wide heap.
//
// Heap is a closed union over the two backends, each behind an
// alloc.Locked mutex. Install publishes a Heap exactly once; Default
// returns it. Boot builds a complete System (heap, frame pool and page
// table mapper) from a boot memory map.
//
//	sys, err := global.Boot(mem, bootmap.Default())
//	if err != nil {
//	    return err
//	}
//	if err := global.Install(sys.Heap); err != nil {
//	    return err
//	}
//	p, err := global.Default().Alloc(alloc.NewLayout(64))
package global
