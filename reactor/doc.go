// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the poll-mode readiness multiplexer driving the
// echo and probe loops: epoll on Linux, poll(2) on other unix systems.
package reactor
