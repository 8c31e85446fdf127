package persist

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"
)

var (
	// ErrUnsupportedArchitecture is returned when running on an
	// architecture the zero-copy slice IO does not support.
	ErrUnsupportedArchitecture = errors.New("unsupported architecture: only amd64 and arm64 are supported")

	// ErrBigEndian is returned when running on big-endian systems.
	ErrBigEndian = errors.New("big-endian systems are not supported")

	// ErrUnalignedAccess is returned when attempting unaligned memory access.
	ErrUnalignedAccess = errors.New("unaligned memory access detected")
)

// init validates platform requirements for the unsafe slice conversions.
func init() {
	if err := validatePlatform(); err != nil {
		panic(fmt.Sprintf("rann/persist: %v", err))
	}
}

func validatePlatform() error {
	arch := runtime.GOARCH
	if arch != "amd64" && arch != "arm64" {
		return fmt.Errorf("%w: %s", ErrUnsupportedArchitecture, arch)
	}
	if !isLittleEndian() {
		return ErrBigEndian
	}
	return nil
}

func isLittleEndian() bool {
	var test uint16 = 0x0001
	firstByte := *(*byte)(unsafe.Pointer(&test))
	return firstByte == 1
}

// validateFloat64SliceAlignment checks if a float64 slice is properly aligned.
func validateFloat64SliceAlignment(vec []float64) error {
	if len(vec) == 0 {
		return nil
	}
	ptr := uintptr(unsafe.Pointer(&vec[0]))
	if ptr%8 != 0 {
		return fmt.Errorf("%w: float64 slice at address 0x%x", ErrUnalignedAccess, ptr)
	}
	return nil
}

// validateInt32SliceAlignment checks if an int32 slice is properly aligned.
func validateInt32SliceAlignment(slice []int32) error {
	if len(slice) == 0 {
		return nil
	}
	ptr := uintptr(unsafe.Pointer(&slice[0]))
	if ptr%4 != 0 {
		return fmt.Errorf("%w: int32 slice at address 0x%x", ErrUnalignedAccess, ptr)
	}
	return nil
}
