//go:build windows

package main

import "golang.org/x/sys/windows"

// enableDPIAwareness makes screen coordinates match physical pixels so the
// hotkey capture region lands under the pointer on scaled displays.
func enableDPIAwareness() {
	const processPerMonitorDPIAware = 2
	shcore := windows.NewLazySystemDLL("Shcore.dll")
	if proc := shcore.NewProc("SetProcessDpiAwareness"); proc.Find() == nil {
		_, _, _ = proc.Call(uintptr(processPerMonitorDPIAware))
		return
	}
	// Fallback for systems without Shcore (pre 8.1).
	user32 := windows.NewLazySystemDLL("user32.dll")
	if proc := user32.NewProc("SetProcessDPIAware"); proc.Find() == nil {
		_, _, _ = proc.Call()
	}
}
