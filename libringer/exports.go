// Command libringer exports the ring buffer as a C library. Build it with
//
//	go build -buildmode=c-shared -o build/release/libringer.so ./libringer
//
// which also generates the matching header.
package main

//#include <stdint.h>
//#include <stdlib.h>
//
//#define RG_MIN_SIZE 2
//#define RG_MAX_SIZE (1 << 28)
//
//typedef uint64_t rg_size_t;
//typedef int64_t rg_pos_t;
//
//typedef uint64_t rg_t;
//typedef rg_t* rg_p;
import "C"

import (
	"unsafe"

	"github.com/tisannai/ringer/pkg/ringer"
)

var versionString = C.CString(ringer.Version)

//rg_get_version returns the library version. The string must not be freed.
//export rg_get_version
func rg_get_version() *C.char {
	return versionString
}

//rg_new creates a ringer with room for size items. Returns 0 if size is below RG_MIN_SIZE or above RG_MAX_SIZE.
//export rg_new
func rg_new(size C.rg_size_t) C.rg_t {
	return C.rg_t(newRing(uint64(size)))
}

//rg_destroy releases the ringer and clears the reference.
//export rg_destroy
func rg_destroy(rgr C.rg_p) {
	if rgr == nil {
		return
	}

	releaseRing(uint64(*rgr))
	*rgr = 0
}

//rg_put appends item at the write end. Returns 0 if the ringer is full.
//export rg_put
func rg_put(rg C.rg_t, item unsafe.Pointer) C.int {
	return C.int(ringPut(uint64(rg), item))
}

//rg_get removes the oldest item. Returns NULL if the ringer is empty.
//export rg_get
func rg_get(rg C.rg_t) unsafe.Pointer {
	return ringGet(uint64(rg))
}

//rg_ram puts item even if the ringer is full by doubling its size. Returns 1 if it was resized.
//export rg_ram
func rg_ram(rgr C.rg_p, item unsafe.Pointer) C.int {
	if rgr == nil {
		return 0
	}

	return C.int(ringRam(uint64(*rgr), item))
}

//rg_put_front stores item before the oldest item. Returns 0 if the ringer is full.
//export rg_put_front
func rg_put_front(rg C.rg_t, item unsafe.Pointer) C.int {
	return C.int(ringPutFront(uint64(rg), item))
}

//rg_get_back removes the newest item. Returns NULL if the ringer is empty.
//export rg_get_back
func rg_get_back(rg C.rg_t) unsafe.Pointer {
	return ringGetBack(uint64(rg))
}

//rg_peek returns the oldest item without removing it.
//export rg_peek
func rg_peek(rg C.rg_t) unsafe.Pointer {
	return ringPeek(uint64(rg))
}

//rg_peek_back returns the newest item without removing it.
//export rg_peek_back
func rg_peek_back(rg C.rg_t) unsafe.Pointer {
	return ringPeekBack(uint64(rg))
}

//rg_get_nth removes the item at offset pos from the read index. Negative offsets count from the back.
//export rg_get_nth
func rg_get_nth(rg C.rg_t, pos C.rg_pos_t) unsafe.Pointer {
	return ringGetNth(uint64(rg), int64(pos))
}

//rg_count returns the number of stored items.
//export rg_count
func rg_count(rg C.rg_t) C.rg_size_t {
	return C.rg_size_t(ringCount(uint64(rg)))
}

//rg_is_empty returns 1 if no items are stored. Unknown handles count as empty.
//export rg_is_empty
func rg_is_empty(rg C.rg_t) C.int {
	return C.int(ringIsEmpty(uint64(rg)))
}

//rg_is_full returns 1 if every slot is taken.
//export rg_is_full
func rg_is_full(rg C.rg_t) C.int {
	return C.int(ringIsFull(uint64(rg)))
}

//rg_size returns the number of slots.
//export rg_size
func rg_size(rg C.rg_t) C.rg_size_t {
	return C.rg_size_t(ringSize(uint64(rg)))
}

//rg_resize changes the storage size. Returns 0 if size can't hold the current items or is above RG_MAX_SIZE.
//export rg_resize
func rg_resize(rgr C.rg_p, size C.rg_size_t) C.int {
	if rgr == nil {
		return 0
	}

	return C.int(ringResize(uint64(*rgr), uint64(size)))
}

func main() {}
