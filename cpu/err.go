package cpu

import (
	"errors"

	"github.com/ezrec/x86lite/translate"
)

var f = translate.From

var (
	// Cpu halt reasons
	ErrIpOverrun = errors.New(f("instruction runs past end of memory"))
	ErrHalted    = errors.New(f("halted"))
)
