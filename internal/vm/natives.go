package vm

import "time"

// defineNatives installs the VM's one built-in native function into the
// global table: clock.
func (vm *VM) defineNatives() {
	start := time.Now()
	vm.defineNative("clock", func(args []Value) (Value, error) {
		return Number(time.Since(start).Seconds()), nil
	})
}

func (vm *VM) defineNative(name string, fn func(args []Value) (Value, error)) {
	vm.globals[name] = NativeVal(&NativeFunction{Name: name, Fn: fn})
}
