package platform

func newNative() (Backend, Capabilities) {
	b := newNativeBackend()
	return b, b.Capabilities()
}

func nativeCapabilities() Capabilities {
	return Capabilities{
		HasGUI:              true,
		CanControlMouse:     true,
		CanControlKeyboard:  true,
		CanCaptureScreen:    true,
		CanEnumerateWindows: true,
		SupportsRealInput:   true,
	}
}
