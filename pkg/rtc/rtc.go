// Package rtc reads and sets the hardware real-time clock: sysfs
// since_epoch for reads, a /dev/rtc ioctl for sets.
package rtc

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
	"unsafe"
)

const (
	sysfsSinceEpoch = "/sys/class/rtc/rtc0/since_epoch"
	devRTC          = "/dev/rtc"

	// rtcSetTime is the Linux RTC_SET_TIME ioctl request number for the
	// struct rtc_time encoding used here (9 x int32: sec, min, hour,
	// mday, mon, year, wday, yday, isdst). No pack example wraps
	// /dev/rtc's ioctl, and periph.io has no RTC device class — raw
	// syscall is the idiomatic stdlib fallback (DESIGN.md "pkg/rtc").
	rtcSetTime = 0x4024700A
)

// rtcTime mirrors struct rtc_time from <linux/rtc.h>: 9 signed 32-bit
// fields.
type rtcTime struct {
	sec, min, hour        int32
	mday, mon, year       int32
	wday, yday, isdst     int32
}

// Read returns the wall-clock time reported by the RTC via sysfs
// since_epoch.
func Read() (time.Time, error) {
	raw, err := os.ReadFile(sysfsSinceEpoch)
	if err != nil {
		return time.Time{}, fmt.Errorf("rtc: read %s: %w", sysfsSinceEpoch, err)
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("rtc: parse since_epoch: %w", err)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// Set writes t to the hardware RTC via the /dev/rtc RTC_SET_TIME ioctl.
func Set(t time.Time) error {
	u := t.UTC()
	rt := rtcTime{
		sec:   int32(u.Second()),
		min:   int32(u.Minute()),
		hour:  int32(u.Hour()),
		mday:  int32(u.Day()),
		mon:   int32(u.Month()) - 1,
		year:  int32(u.Year()) - 1900,
		wday:  0,
		yday:  0,
		isdst: 0,
	}

	f, err := os.OpenFile(devRTC, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("rtc: open %s: %w", devRTC, err)
	}
	defer f.Close()

	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uintptr(rtcSetTime), uintptr(unsafe.Pointer(&rt)))
	if errno != 0 {
		return fmt.Errorf("rtc: RTC_SET_TIME ioctl: %w", errno)
	}
	return nil
}

// SetZero resets the RTC to the Unix epoch, as part of a factory reset.
func SetZero() error {
	return Set(time.Unix(0, 0))
}
