// Package pwm drives a single Linux sysfs PWM channel.
//
// A Channel turns export/unexport, period, duty cycle and enable requests into
// the writes the kernel expects under /sys/class/pwm/pwmchipN:
// - export / unexport take the decimal channel index
// - pwmM/period and pwmM/duty_cycle take decimal nanoseconds
// - pwmM/enable takes "1" or "0"
//
// Nothing is read back. The cached period, duty cycle and state only reflect
// what this process last wrote successfully.
package pwm
