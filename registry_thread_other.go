//go:build !linux

package fiber

// osThreadID is unavailable off Linux; -1 marks it as not collected.
func osThreadID() int {
	return -1
}
