//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package logging

import "golang.org/x/sys/unix"

const ioctlReadTermios = unix.TIOCGETA
