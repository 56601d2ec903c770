package transport

// deviceOfflineError signals an answer for a device with no connection.
type deviceOfflineError struct{ device string }

func (e deviceOfflineError) Error() string { return "device not connected: " + e.device }

// ErrDeviceOffline constructs a deviceOfflineError.
func ErrDeviceOffline(device string) error { return deviceOfflineError{device: device} }

// IsDeviceOffline reports whether err indicates a missing connection.
func IsDeviceOffline(err error) bool {
	_, ok := err.(deviceOfflineError)
	return ok
}
