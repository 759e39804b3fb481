//go:build !linux

package device

import (
	"runtime"

	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

func newUinputFactory(Config) (Factory, error) {
	return nil, merr.WrapErrDeviceUnsupported(BackendUinput, "uinput requires linux, running on "+runtime.GOOS)
}
