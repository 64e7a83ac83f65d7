//go:build rp2040 || rp2350

package main

import "time"

const usbSettle = 2 * time.Second
