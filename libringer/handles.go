package main

import (
	"sync"
	"unsafe"

	"github.com/tisannai/ringer/pkg/ringer"
)

// C code only ever sees handles. Handle 0 is never issued so that it can serve as NULL.
var (
	poolLock   sync.Mutex
	ringPool   = map[uint64]*ringer.Ringer[unsafe.Pointer]{}
	nextHandle uint64
)

// maxRingSize bounds the storage requested through the C API; larger sizes would make the allocation panic
const maxRingSize = 1 << 28

func newRing(size uint64) uint64 {
	if size < ringer.MinSize || size > maxRingSize {
		return 0
	}

	rg, err := ringer.New[unsafe.Pointer](int(size))
	if err != nil {
		return 0
	}

	poolLock.Lock()
	defer poolLock.Unlock()

	nextHandle++
	ringPool[nextHandle] = rg
	return nextHandle
}

func lookupRing(handle uint64) *ringer.Ringer[unsafe.Pointer] {
	poolLock.Lock()
	defer poolLock.Unlock()

	return ringPool[handle]
}

func releaseRing(handle uint64) {
	poolLock.Lock()
	defer poolLock.Unlock()

	delete(ringPool, handle)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func ringPut(handle uint64, item unsafe.Pointer) int {
	rg := lookupRing(handle)
	if rg == nil {
		return 0
	}

	return boolToInt(rg.Put(item))
}

func ringGet(handle uint64) unsafe.Pointer {
	rg := lookupRing(handle)
	if rg == nil {
		return nil
	}

	item, _ := rg.Get()
	return item
}

func ringRam(handle uint64, item unsafe.Pointer) int {
	rg := lookupRing(handle)
	if rg == nil {
		return 0
	}

	return boolToInt(rg.Ram(item))
}

func ringPutFront(handle uint64, item unsafe.Pointer) int {
	rg := lookupRing(handle)
	if rg == nil {
		return 0
	}

	return boolToInt(rg.PutFront(item))
}

func ringGetBack(handle uint64) unsafe.Pointer {
	rg := lookupRing(handle)
	if rg == nil {
		return nil
	}

	item, _ := rg.GetBack()
	return item
}

func ringPeek(handle uint64) unsafe.Pointer {
	rg := lookupRing(handle)
	if rg == nil {
		return nil
	}

	item, _ := rg.Peek()
	return item
}

func ringPeekBack(handle uint64) unsafe.Pointer {
	rg := lookupRing(handle)
	if rg == nil {
		return nil
	}

	item, _ := rg.PeekBack()
	return item
}

func ringGetNth(handle uint64, pos int64) unsafe.Pointer {
	rg := lookupRing(handle)
	if rg == nil {
		return nil
	}

	item, _ := rg.GetNth(int(pos))
	return item
}

func ringCount(handle uint64) uint64 {
	rg := lookupRing(handle)
	if rg == nil {
		return 0
	}

	return uint64(rg.Count())
}

func ringSize(handle uint64) uint64 {
	rg := lookupRing(handle)
	if rg == nil {
		return 0
	}

	return uint64(rg.Size())
}

func ringIsEmpty(handle uint64) int {
	rg := lookupRing(handle)
	if rg == nil {
		return 1
	}

	return boolToInt(rg.IsEmpty())
}

func ringIsFull(handle uint64) int {
	rg := lookupRing(handle)
	if rg == nil {
		return 0
	}

	return boolToInt(rg.IsFull())
}

func ringResize(handle uint64, size uint64) int {
	rg := lookupRing(handle)
	if rg == nil || size > maxRingSize {
		return 0
	}

	return boolToInt(rg.Resize(int(size)))
}
