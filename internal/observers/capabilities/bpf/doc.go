// Package bpf holds the capability probe and its generated loaders.
//
// The probe itself is capable.bpf.c, a kprobe on cap_capable that
// applies the configured filters in the kernel and streams surviving
// checks over a perf event array. Regenerate the Go bindings with:
//
//	go generate ./internal/observers/capabilities/bpf
//
// Generation needs clang, libbpf headers and a vmlinux.h under
// ./headers, typically produced with:
//
//	bpftool btf dump file /sys/kernel/btf/vmlinux format c > headers/vmlinux.h
//
// Builds without the generated artifacts still compile; loading then
// fails with an error that points back here.
package bpf
